package http

import (
	"errors"
	"net/http"
	"strings"

	"uscite/internal/core"
	"uscite/internal/dispatch"
	applog "uscite/internal/log"
	"uscite/internal/services"
	"uscite/internal/storage"
)

// indexData feeds the index template. Everything comes from the session
// snapshot; the template computes nothing itself.
type indexData struct {
	Snap       services.Snapshot
	ManualLink string
	Warning    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		mk, err := core.ParseMonthKey(month)
		if err != nil {
			s.renderError(w, http.StatusBadRequest, "Mese non valido")
			return
		}
		if err := s.session.SelectMonth(mk); err != nil {
			s.renderError(w, http.StatusBadRequest, "Mese non valido")
			return
		}
	}

	snap := s.session.Snapshot()
	data := indexData{
		Snap:    snap,
		Warning: strings.TrimSpace(r.URL.Query().Get("warn")),
	}
	if s.link != nil {
		data.ManualLink = s.link.LastLink()
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	amount := strings.TrimSpace(r.Form.Get("amount"))
	reason := strings.TrimSpace(r.Form.Get("reason"))
	notes := strings.TrimSpace(r.Form.Get("notes"))

	_, err := s.session.AddExpense(r.Context(), amount, reason, notes)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		s.renderError(w, http.StatusBadRequest, "Importo non valido: serve un numero positivo")
		return
	case errors.Is(err, core.ErrEmptyReason):
		s.renderError(w, http.StatusBadRequest, "La causale non può essere vuota")
		return
	case errors.Is(err, storage.ErrNotDurable):
		// Recorded in memory; warn that persistence failed.
		s.redirect(w, r, "/?warn=Salvataggio+non+riuscito%2C+la+spesa+potrebbe+andare+persa")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Create expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	s.redirect(w, r, "/")
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	confirmed := r.Form.Get("confirmed") == "true"

	err := s.session.RemoveExpense(r.Context(), id, confirmed)
	switch {
	case errors.Is(err, services.ErrConfirmationRequired):
		s.renderError(w, http.StatusBadRequest, "Eliminazione non confermata")
		return
	case errors.Is(err, services.ErrExpenseNotFound):
		s.renderError(w, http.StatusNotFound, "Spesa non trovata")
		return
	case errors.Is(err, storage.ErrNotDurable):
		s.redirect(w, r, "/?warn=Salvataggio+non+riuscito%2C+la+modifica+potrebbe+andare+persa")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Delete expense failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Eliminazione non riuscita")
		return
	}

	s.redirect(w, r, "/")
}

func (s *Server) handleReminderSend(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Formato richiesta non valido")
		return
	}

	var override *core.MonthKey
	if month := strings.TrimSpace(r.Form.Get("month")); month != "" {
		mk, err := core.ParseMonthKey(month)
		if err != nil {
			s.renderError(w, http.StatusBadRequest, "Mese non valido")
			return
		}
		override = &mk
	}

	s.finishDispatch(w, r, s.session.ConfirmSendReminder(r.Context(), override))
}

func (s *Server) handleReminderDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	s.session.DismissReminder()
	s.redirect(w, r, "/")
}

func (s *Server) handleSummarySend(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	s.finishDispatch(w, r, s.session.SendSummaryForSelectedMonth(r.Context()))
}

// finishDispatch routes the outcome of a summary dispatch. In link mode the
// browser is sent to the freshly composed deep link, which opens the
// external composer.
func (s *Server) finishDispatch(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrDeliveryUnavailable):
		s.renderError(w, http.StatusServiceUnavailable, "Invio non disponibile, riprova più tardi")
		return
	case errors.Is(err, storage.ErrNotDurable):
		s.redirect(w, r, "/?warn=Riepilogo+inviato+ma+non+registrato")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Summary dispatch failed", applog.FieldError, err)
		s.renderError(w, http.StatusBadRequest, "Invio non riuscito")
		return
	}

	if s.link != nil {
		if link := s.link.LastLink(); link != "" {
			http.Redirect(w, r, link, http.StatusSeeOther)
			return
		}
	}
	s.redirect(w, r, "/")
}

func (s *Server) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + msg + `</div>`))
}
