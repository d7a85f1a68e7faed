package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeInbox struct {
	owner   uuid.UUID
	missing uuid.UUID
}

func (f *fakeInbox) List(_ context.Context, owner uuid.UUID, page, size int) ([]inapp.Notification, int, error) {
	return []inapp.Notification{{ID: uuid.New(), OwnerID: owner, Title: "New Lead: Jane"}}, 1, nil
}

func (f *fakeInbox) CountUnread(context.Context, uuid.UUID) (int, error) { return 4, nil }

func (f *fakeInbox) MarkRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	if id == f.missing {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (f *fakeInbox) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 2, nil }
func (f *fakeInbox) Delete(context.Context, uuid.UUID, uuid.UUID) error     { return nil }

type fakePrefs struct {
	saved preferences.Override
}

func (f *fakePrefs) Get(context.Context, uuid.UUID) (preferences.View, error) {
	return preferences.View{Effective: preferences.Defaults()}, nil
}

func (f *fakePrefs) Update(_ context.Context, _ uuid.UUID, patch preferences.Override) (preferences.View, error) {
	if err := patch.Validate(); err != nil {
		return preferences.View{}, err
	}
	f.saved = patch
	return preferences.View{Effective: preferences.Merge(preferences.Defaults(), patch), Override: patch}, nil
}

func newRouter(owner uuid.UUID, inbox *fakeInbox, prefs *fakePrefs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if owner != uuid.Nil {
		r.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, owner)
			c.Next()
		})
	}
	h := NewHTTPHandler(inbox, prefs, func(context.Context, uuid.UUID) (any, error) {
		return gin.H{"skipped": false}, nil
	}, nil)
	h.RegisterInboxRoutes(r.Group("/notifications"))
	h.RegisterPreferenceRoutes(r.Group("/notification-preferences"))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInboxRequiresIdentity(t *testing.T) {
	r := newRouter(uuid.Nil, &fakeInbox{}, &fakePrefs{})
	if rec := do(r, http.MethodGet, "/notifications", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInboxEndpoints(t *testing.T) {
	owner := uuid.New()
	inbox := &fakeInbox{owner: owner, missing: uuid.New()}
	r := newRouter(owner, inbox, &fakePrefs{})

	rec := do(r, http.MethodGet, "/notifications/unread-count", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":4`) {
		t.Fatalf("unexpected unread count response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodPatch, "/notifications/not-a-uuid/read", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	rec = do(r, http.MethodPatch, "/notifications/"+inbox.missing.String()+"/read", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown notification, got %d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/notifications/read-all", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"updated":2`) {
		t.Fatalf("unexpected read-all response %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdatePreferences(t *testing.T) {
	owner := uuid.New()
	prefs := &fakePrefs{}
	r := newRouter(owner, &fakeInbox{}, prefs)

	rec := do(r, http.MethodPut, "/notification-preferences", `{"triggers":{"leadCaptured":{"enabled":false}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data preferences.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Effective.For(preferences.TriggerLeadCaptured).Enabled {
		t.Fatalf("expected leadCaptured disabled in response")
	}

	rec = do(r, http.MethodPut, "/notification-preferences", `{"triggers":{"leadCaptured":{"channels":["pigeon"]}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown channel, got %d", rec.Code)
	}
}

func TestSendTestNotification(t *testing.T) {
	r := newRouter(uuid.New(), &fakeInbox{}, &fakePrefs{})
	rec := do(r, http.MethodPost, "/notification-preferences/test", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Test notification sent") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
