package adminhttp

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/storage/sqlite"
)

type fakeHistory struct {
	records []sqlite.MatchRecord
	err     error
}

func (f *fakeHistory) RecentMatches(limit int) ([]sqlite.MatchRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newTestAdminServer() *Server {
	clients := session.NewClientRegistry()
	clients.RegisterClient(&net.UDPAddr{Port: 1})
	viewers := session.NewViewerRegistry()
	return &Server{Clients: clients, Viewers: viewers}
}

func TestHandleStatsReportsCounts(t *testing.T) {
	s := newTestAdminServer()
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Clients != 1 || got.Viewers != 0 {
		t.Fatalf("got %+v, want {Clients:1 Viewers:0}", got)
	}
}

func TestHandleMatchesWithoutHistoryIsUnavailable(t *testing.T) {
	s := newTestAdminServer()
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleMatchesReturnsHistory(t *testing.T) {
	s := newTestAdminServer()
	s.History = &fakeHistory{records: []sqlite.MatchRecord{
		{ID: 1, StartedAt: time.Unix(0, 0), EndedAt: time.Unix(10, 0), Ticks: 10, WinnerTankID: "tank-a"},
	}}
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []sqlite.MatchRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].WinnerTankID != "tank-a" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleMatchesPlotWithNoMatchesIsNotFound(t *testing.T) {
	s := newTestAdminServer()
	s.History = &fakeHistory{}
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches/plot.png", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleMatchesPlotRendersPNG(t *testing.T) {
	s := newTestAdminServer()
	s.History = &fakeHistory{records: []sqlite.MatchRecord{
		{ID: 1, Ticks: 100, EndedAt: time.Unix(10, 0)},
		{ID: 2, Ticks: 200, EndedAt: time.Unix(20, 0)},
	}}
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches/plot.png", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a non-empty PNG body")
	}
}

func TestHandleMatchesChartRendersHTML(t *testing.T) {
	s := newTestAdminServer()
	s.History = &fakeHistory{records: []sqlite.MatchRecord{
		{ID: 1, Ticks: 50, EndedAt: time.Unix(5, 0)},
	}}
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches/chart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a non-empty chart body")
	}
}
