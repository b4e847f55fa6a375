package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	perr "ordercast/internal/platform/errors"
	phttp "ordercast/internal/platform/net/http"
	"ordercast/internal/services/sync/domain"
)

type fakeOrch struct {
	sum   domain.SyncSummary
	err   error
	state domain.State
	last  domain.SyncInput
}

func (f *fakeOrch) Run(_ context.Context, in domain.SyncInput) (domain.SyncSummary, error) {
	f.last = in
	return f.sum, f.err
}

func (f *fakeOrch) State() domain.State { return f.state }

type fakeReader struct {
	docs map[int64]domain.Document
}

func (f *fakeReader) GetByCustomer(_ context.Context, id int64) (domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return domain.Document{}, perr.NotFoundf("no document for customer %d", id)
	}
	return doc, nil
}

func (f *fakeReader) ListRecent(context.Context, int) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeReader) ListUpdatedBetween(context.Context, time.Time, time.Time, int) ([]domain.Document, error) {
	return nil, nil
}

func mount(orch domain.OrchestratorPort, reader domain.ReaderPort) *chi.Mux {
	m := chi.NewRouter()
	Register(phttp.AdaptChi(m), orch, reader)
	return m
}

func TestRun_ReturnsSummary(t *testing.T) {
	orch := &fakeOrch{
		sum:   domain.SyncSummary{ProcessedCustomerIDs: []int64{1, 2}, ProcessedCount: 2},
		state: domain.StateDone,
	}
	m := mount(orch, &fakeReader{})

	req := httptest.NewRequest("POST", "/run", strings.NewReader(`{"status":"paid","min_orders_per_customer":2}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if orch.last.Status != "paid" || orch.last.MinOrdersPerCustomer != 2 {
		t.Fatalf("input not decoded: %+v", orch.last)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad envelope: %v", err)
	}
	data := env.Data.(map[string]any)
	if data["processed_count"].(float64) != 2 {
		t.Fatalf("summary not returned: %v", env.Data)
	}
}

func TestRun_ConflictMapsTo409(t *testing.T) {
	orch := &fakeOrch{err: perr.Conflictf("sync already running")}
	m := mount(orch, &fakeReader{})

	req := httptest.NewRequest("POST", "/run", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 409 {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestState_ReportsCurrentState(t *testing.T) {
	m := mount(&fakeOrch{state: domain.StateFetchingOrders}, &fakeReader{})

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/state", nil))

	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "fetching_orders") {
		t.Fatalf("expected state in body, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentGet_NotFoundMapsTo404(t *testing.T) {
	m := mount(&fakeOrch{}, &fakeReader{docs: map[int64]domain.Document{}})

	req := httptest.NewRequest("POST", "/documents/get", strings.NewReader(`{"customer_id":7}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentGet_RejectsNonPositiveID(t *testing.T) {
	m := mount(&fakeOrch{}, &fakeReader{})

	req := httptest.NewRequest("POST", "/documents/get", strings.NewReader(`{"customer_id":0}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentList_HalfWindowRejected(t *testing.T) {
	m := mount(&fakeOrch{}, &fakeReader{})

	req := httptest.NewRequest("POST", "/documents/list", strings.NewReader(`{"since":"2026-01-01T00:00:00Z"}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentList_ReturnsRecent(t *testing.T) {
	reader := &fakeReader{docs: map[int64]domain.Document{42: {CustomerID: 42}}}
	m := mount(&fakeOrch{}, reader)

	req := httptest.NewRequest("POST", "/documents/list", strings.NewReader(`{"limit":10}`))
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"customer_id":42`) {
		t.Fatalf("expected document list, got %d: %s", rec.Code, rec.Body.String())
	}
}
