// Package sms sends text messages through a Celcom Africa style bulk SMS API.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/logger"
	"listing_leads_backend/platform/phone"
)

var ErrNotConfigured = errors.New("sms gateway not configured")

const codeSuccess = 200

var providerErrors = map[int]string{
	1001: "invalid API key",
	1002: "invalid partner ID",
	1003: "invalid mobile number",
	1004: "invalid message content",
	1005: "invalid shortcode",
	1006: "insufficient balance",
	1007: "missing required parameter",
	1009: "message too long",
	1010: "rate limit exceeded",
	4090: "system error",
	4093: "service unavailable",
}

type Client struct {
	url       string
	apiKey    string
	partnerID string
	shortcode string
	http      *http.Client
	log       *logger.Logger
}

type sendRequest struct {
	APIKey    string `json:"apikey"`
	PartnerID string `json:"partnerID"`
	Message   string `json:"message"`
	Shortcode string `json:"shortcode"`
	Mobile    string `json:"mobile"`
}

type sendResponse struct {
	Responses []struct {
		Code        int    `json:"response-code"`
		Description string `json:"response-description"`
		MessageID   any    `json:"messageid"`
	} `json:"responses"`
}

// NewClient returns nil when the gateway is not configured. A nil client
// fails every send with ErrNotConfigured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSURL() == "" || cfg.GetSMSAPIKey() == "" || cfg.GetSMSPartnerID() == "" {
		return nil
	}
	return &Client{
		url:       cfg.GetSMSURL(),
		apiKey:    cfg.GetSMSAPIKey(),
		partnerID: cfg.GetSMSPartnerID(),
		shortcode: cfg.GetSMSShortcode(),
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

func (c *Client) SendSMS(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return ErrNotConfigured
	}

	mobile := phone.Digits(phone.NormalizeE164(phoneNumber))
	if mobile == "" || strings.TrimSpace(message) == "" {
		return fmt.Errorf("missing phone number or message")
	}

	body, err := json.Marshal(sendRequest{
		APIKey:    c.apiKey,
		PartnerID: c.partnerID,
		Message:   message,
		Shortcode: c.shortcode,
		Mobile:    mobile,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sms service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Responses) == 0 {
		return fmt.Errorf("invalid response format from sms service")
	}
	for _, r := range parsed.Responses {
		if r.Code != codeSuccess {
			return fmt.Errorf("sms rejected: %s", describeCode(r.Code))
		}
	}

	c.log.Info("sms sent", "mobile", mobile)
	return nil
}

func describeCode(code int) string {
	if msg, ok := providerErrors[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error (code: %d)", code)
}
