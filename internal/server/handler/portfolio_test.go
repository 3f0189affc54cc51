package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

type fakePortfolioService struct {
	summary domain.PortfolioSummary
	err     error
	gotPref domain.Provider
}

func (f *fakePortfolioService) GetPortfolio(ctx context.Context, userID string, preferred domain.Provider) (domain.PortfolioSummary, error) {
	f.gotPref = preferred
	return f.summary, f.err
}

type fakeSnapshotReader struct {
	snaps       []domain.PortfolioSnapshot
	err         error
	gotProvider domain.Provider
}

func (f *fakeSnapshotReader) ListPortfolioSnapshots(ctx context.Context, userID string, provider domain.Provider, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	f.gotProvider = provider
	return f.snaps, f.err
}

func TestGetPortfolio(t *testing.T) {
	synced := time.Now().UTC().Add(-time.Minute)
	svc := &fakePortfolioService{summary: domain.PortfolioSummary{
		Provider:       domain.ProviderPolymarket,
		CashBalance:    100,
		PositionsValue: 6,
		TotalValue:     106,
		LastSyncedAt:   &synced,
	}}
	h := NewPortfolioHandler(svc, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio?user_id=u1&provider=kalshi", nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotPref != domain.ProviderKalshi {
		t.Errorf("preferred = %q", svc.gotPref)
	}

	var body struct {
		TotalValue float64 `json:"TotalValue"`
		Stale      bool    `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalValue != 106 {
		t.Errorf("total = %v", body.TotalValue)
	}
	if body.Stale {
		t.Error("recently synced portfolio flagged stale")
	}
}

func TestGetPortfolioStale(t *testing.T) {
	old := time.Now().UTC().Add(-time.Hour)
	svc := &fakePortfolioService{summary: domain.PortfolioSummary{
		Provider:     domain.ProviderPolymarket,
		LastSyncedAt: &old,
	}}
	h := NewPortfolioHandler(svc, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio?user_id=u1", nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	var body struct {
		Stale bool `json:"stale"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Stale {
		t.Error("hour-old sync must be flagged stale")
	}
}

func TestGetPortfolioNeverSynced(t *testing.T) {
	svc := &fakePortfolioService{summary: domain.PortfolioSummary{Provider: domain.ProviderNone}}
	h := NewPortfolioHandler(svc, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio?user_id=u1", nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Stale bool `json:"stale"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Stale {
		t.Error("never-synced portfolio must be flagged stale")
	}
}

func TestGetPortfolioRequiresUser(t *testing.T) {
	h := NewPortfolioHandler(&fakePortfolioService{}, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetPortfolioHistory(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	snaps := &fakeSnapshotReader{snaps: []domain.PortfolioSnapshot{
		{RunID: "r2", Provider: domain.ProviderPolymarket, CashBalance: 100, PositionsValue: 6, TotalValue: 106, CreatedAt: created},
		{RunID: "r1", Provider: domain.ProviderPolymarket, CashBalance: 100, PositionsValue: 4, TotalValue: 104, CreatedAt: created.Add(-24 * time.Hour)},
	}}
	h := NewPortfolioHandler(&fakePortfolioService{}, snaps, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/history?user_id=u1&provider=polymarket", nil)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if snaps.gotProvider != domain.ProviderPolymarket {
		t.Errorf("provider = %q", snaps.gotProvider)
	}

	var body struct {
		Snapshots []struct {
			RunID      string  `json:"run_id"`
			TotalValue float64 `json:"total_value"`
			CreatedAt  string  `json:"created_at"`
		} `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(body.Snapshots))
	}
	if body.Snapshots[0].RunID != "r2" || body.Snapshots[0].TotalValue != 106 {
		t.Errorf("first snapshot = %+v", body.Snapshots[0])
	}
	if body.Snapshots[0].CreatedAt != "2026-08-30T12:00:00Z" {
		t.Errorf("created_at = %q", body.Snapshots[0].CreatedAt)
	}
}

func TestGetPortfolioHistoryEmptyIsArray(t *testing.T) {
	h := NewPortfolioHandler(&fakePortfolioService{}, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/history?user_id=u1&provider=kalshi", nil)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"snapshots":[]`) {
		t.Errorf("body = %s, want empty array", rec.Body)
	}
}

func TestGetPortfolioHistoryRequiresProvider(t *testing.T) {
	h := NewPortfolioHandler(&fakePortfolioService{}, &fakeSnapshotReader{}, 15*time.Minute, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/history?user_id=u1", nil)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without provider", rec.Code)
	}
}
