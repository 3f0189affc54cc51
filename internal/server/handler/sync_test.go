package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSyncService struct {
	result  domain.SyncResult
	err     error
	gotUser string
	gotPref domain.Provider
}

func (f *fakeSyncService) SyncNow(ctx context.Context, userID string, preferred domain.Provider) (domain.SyncResult, error) {
	f.gotUser = userID
	f.gotPref = preferred
	return f.result, f.err
}

func TestTriggerSync(t *testing.T) {
	finished := time.Now().UTC()
	run := domain.SyncRun{
		ID:         "run-1",
		UserID:     "u1",
		Provider:   domain.ProviderPolymarket,
		Status:     domain.SyncStatusSuccess,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: &finished,
	}
	svc := &fakeSyncService{result: domain.SyncResult{Provider: domain.ProviderPolymarket, Run: &run}}
	h := NewSyncHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "u1", "provider": "polymarket"}`))
	rec := httptest.NewRecorder()
	h.TriggerSync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if svc.gotUser != "u1" || svc.gotPref != domain.ProviderPolymarket {
		t.Errorf("service called with %q %q", svc.gotUser, svc.gotPref)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["provider"] != "polymarket" {
		t.Errorf("provider = %v", body["provider"])
	}
	runBody, ok := body["run"].(map[string]any)
	if !ok {
		t.Fatalf("run = %v", body["run"])
	}
	if runBody["id"] != "run-1" || runBody["status"] != "success" {
		t.Errorf("run = %v", runBody)
	}
}

func TestTriggerSyncAutoProvider(t *testing.T) {
	svc := &fakeSyncService{result: domain.SyncResult{Provider: domain.ProviderNone}}
	h := NewSyncHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "u1", "provider": "auto"}`))
	rec := httptest.NewRecorder()
	h.TriggerSync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotPref != domain.ProviderNone {
		t.Errorf("preferred = %q, want none for auto", svc.gotPref)
	}
}

func TestTriggerSyncValidation(t *testing.T) {
	h := NewSyncHandler(&fakeSyncService{}, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing user", `{"provider": "kalshi"}`},
		{"bad provider", `{"user_id": "u1", "provider": "nasdaq"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.TriggerSync(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTriggerSyncThrottled(t *testing.T) {
	svc := &fakeSyncService{err: domain.ErrSyncThrottled}
	h := NewSyncHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "u1"}`))
	rec := httptest.NewRecorder()
	h.TriggerSync(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestTriggerSyncCapturedFailure(t *testing.T) {
	svc := &fakeSyncService{result: domain.SyncResult{Provider: domain.ProviderKalshi, Error: "upstream down"}}
	h := NewSyncHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "u1"}`))
	rec := httptest.NewRecorder()
	h.TriggerSync(rec, req)

	// A captured provider failure is a structured 200, not a 5xx.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "upstream down" {
		t.Errorf("body = %v", body)
	}
}
