package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"uscite/internal/dispatch"
	applog "uscite/internal/log"
	"uscite/internal/services"
	"uscite/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *services.Session) {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	store := storage.NewLedgerStore(storage.NewMemoryKV(), "ledger", "last_sent_month", logger)
	link := dispatch.NewLinkComposer()
	dispatcher := dispatch.NewDispatcher(link, store, "391234567890", "Spese", logger)

	session, err := services.NewSession(context.Background(), services.Params{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Now:        func() time.Time { return time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	srv, err := NewServer(":0", session, link, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, session
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Totale") {
		t.Fatalf("index body missing total")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexRejectsUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateExpense(t *testing.T) {
	srv, session := newTestServer(t)

	// Wrong method
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid amount
	rr = postForm(srv, "/expenses", url.Values{"amount": {"abc"}, "reason": {"spesa"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid amount, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Importo non valido") {
		t.Fatalf("missing amount error message: %s", rr.Body.String())
	}

	// Empty reason
	rr = postForm(srv, "/expenses", url.Values{"amount": {"12,50"}, "reason": {""}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty reason, got %d", rr.Code)
	}

	// Success redirects home
	rr = postForm(srv, "/expenses", url.Values{"amount": {"12,50"}, "reason": {"spesa"}, "notes": {"conad"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	snap := session.Snapshot()
	if len(snap.Entries) != 1 || snap.Entries[0].Amount.Cents != 1250 {
		t.Fatalf("expense not recorded: %+v", snap.Entries)
	}
}

func TestDeleteExpenseRequiresConfirmation(t *testing.T) {
	srv, session := newTestServer(t)

	rr := postForm(srv, "/expenses", url.Values{"amount": {"5"}, "reason": {"caffè"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("seed expense: status=%d", rr.Code)
	}
	id := session.Snapshot().Entries[0].ID

	// Without the confirmed flag nothing is deleted.
	rr = postForm(srv, "/expenses/delete", url.Values{"id": {id}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirmation, got %d", rr.Code)
	}
	if len(session.Snapshot().Entries) != 1 {
		t.Fatalf("unconfirmed delete must not remove the entry")
	}

	// Unknown ID
	rr = postForm(srv, "/expenses/delete", url.Values{"id": {"missing"}, "confirmed": {"true"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}

	// Confirmed delete succeeds.
	rr = postForm(srv, "/expenses/delete", url.Values{"id": {id}, "confirmed": {"true"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if len(session.Snapshot().Entries) != 0 {
		t.Fatalf("entry should be gone")
	}
}

func TestMonthSelection(t *testing.T) {
	srv, session := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?month=agosto", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed month, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?month=2025-08", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := session.Snapshot().SelectedMonth.String(); got != "2025-08" {
		t.Fatalf("selected month = %s", got)
	}
}

func TestSummarySendRedirectsToDeepLink(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postForm(srv, "/expenses", url.Values{"amount": {"120,50"}, "reason": {"bolletta"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("seed expense: status=%d", rr.Code)
	}

	rr = postForm(srv, "/summary/send", url.Values{})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://wa.me/391234567890?text=") {
		t.Fatalf("expected deep link redirect, got %q", loc)
	}
	if !strings.Contains(loc, "120.50") {
		t.Fatalf("link missing total: %q", loc)
	}
}

func TestReminderDismiss(t *testing.T) {
	srv, session := newTestServer(t)

	rr := postForm(srv, "/reminder/dismiss", url.Values{})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if session.Snapshot().ReminderVisible {
		t.Fatalf("reminder should stay hidden")
	}
}
