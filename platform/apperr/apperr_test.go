package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetKindUnwrapsChain(t *testing.T) {
	base := Conflict("lead already exists").WithOp("leads.repository.create")
	wrapped := fmt.Errorf("ingest web form: %w", base)

	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected wrapped error to carry KindConflict, got %v", GetKind(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected KindUnknown for untyped error")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Internal("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: expected status %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestErrorStringIncludesOpAndCause(t *testing.T) {
	err := Wrap(KindInternal, "query failed", errors.New("conn reset")).WithOp("leads.repository.get")
	want := "leads.repository.get: query failed: conn reset"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
