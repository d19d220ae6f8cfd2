package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

func fixClock(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time {
		return time.Date(2026, 3, 1, 8, 30, 15, 123456789, time.FixedZone("JST", 9*3600))
	}
	t.Cleanup(func() { now = orig })
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestOK_WritesEnvelope(t *testing.T) {
	fixClock(t)
	rec := httptest.NewRecorder()

	OK(rec, http.StatusCreated, "Created.", map[string]string{"id": "1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decode(t, rec)
	if body["success"] != true || body["message"] != "Created." {
		t.Errorf("body = %v", body)
	}
	if body["timestamp"] != "2026-02-28T23:30:15.123Z" {
		t.Errorf("timestamp = %v, want UTC with milliseconds", body["timestamp"])
	}
	if _, ok := body["error"]; ok {
		t.Error("success envelope should not carry error")
	}
	if _, ok := body["pagination"]; ok {
		t.Error("single resource envelope should not carry pagination")
	}
}

func TestList_IncludesPagination(t *testing.T) {
	rec := httptest.NewRecorder()

	List(rec, "OK", []int{1, 2}, model.NewPagination(1, 2, 5))

	body := decode(t, rec)
	p, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("pagination missing: %v", body)
	}
	if p["total"] != float64(5) || p["totalPages"] != float64(3) || p["hasNext"] != true || p["hasPrev"] != false {
		t.Errorf("pagination = %v", p)
	}
}

func TestList_EmptySliceRendersArray(t *testing.T) {
	rec := httptest.NewRecorder()
	List(rec, "OK", []int{}, model.NewPagination(1, 50, 0))

	body := decode(t, rec)
	if arr, ok := body["data"].([]any); !ok || len(arr) != 0 {
		t.Errorf("data = %#v, want empty array", body["data"])
	}
}

func TestError_MapsKindToStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewNoTokenError(), http.StatusUnauthorized},
		{model.NewForbiddenError(""), http.StatusForbidden},
		{model.NewNotFoundError("Medication"), http.StatusNotFound},
		{model.NewEmailInUseError(), http.StatusConflict},
		{model.NewValidationError(map[string]string{"weight": "required"}), http.StatusBadRequest},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Error(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, rec.Code, tt.want)
		}
		body := decode(t, rec)
		if body["success"] != false || body["error"] != tt.err.Code || body["message"] != tt.err.Message {
			t.Errorf("%s: body = %v", tt.err.Code, body)
		}
	}
}

func TestError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, model.NewValidationError(map[string]string{"weight": "must be greater than 0"}))

	body := decode(t, rec)
	details, ok := body["details"].(map[string]any)
	if !ok || details["weight"] != "must be greater than 0" {
		t.Errorf("details = %v", body["details"])
	}
}
