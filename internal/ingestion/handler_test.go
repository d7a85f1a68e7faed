package ingestion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(f *fixture, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.svc)
	r.POST("/leads", h.HandleCreateLead)
	hooks := r.Group("/webhooks", APIKeyAuthMiddleware(secret))
	hooks.POST("/messages", h.HandleInboundMessage)
	hooks.POST("/email", h.HandleInboundEmail)
	return r
}

func TestWebhookRequiresAPIKeyWhenConfigured(t *testing.T) {
	r := newTestRouter(newFixture(), "s3cret")

	cases := map[string]int{"": http.StatusUnauthorized, "wrong": http.StatusUnauthorized, "s3cret": http.StatusOK}
	for key, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/messages", strings.NewReader(`{"from":"+254700000001","body":"#ABC123"}`))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("key %q: expected %d, got %d (%s)", key, want, rec.Code, rec.Body.String())
		}
	}
}

func TestMessageWebhookAcceptsFormBody(t *testing.T) {
	r := newTestRouter(newFixture(), "")

	form := url.Values{"From": {"whatsapp:+254700000001"}, "Body": {"Is #ABC123 available?"}, "ProfileName": {"Wanjiku"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.IsNew || resp.LeadID == nil || resp.Pending {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateLeadStatusCodes(t *testing.T) {
	r := newTestRouter(newFixture(), "")
	body, _ := json.Marshal(webRequest())

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := post(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d (%s)", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(`{"listingId":"ABC123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
	}
}
