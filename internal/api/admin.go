package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bher20/equotemanager/internal/auth"
	"github.com/bher20/equotemanager/internal/cron"
	"github.com/bher20/equotemanager/internal/quotes"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/go-chi/chi/v5"
)

const secretMask = "********"

// quoteView renders stored JSON columns as JSON instead of base64.
type quoteView struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Variant      string          `json:"variant"`
	Inputs       json.RawMessage `json:"inputs"`
	PriceMin     int64           `json:"priceMin"`
	PriceMax     int64           `json:"priceMax"`
	Breakdown    json.RawMessage `json:"breakdown,omitempty"`
	RatesVersion string          `json:"rates_version,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newQuoteView(q *storage.Quote) *quoteView {
	if q == nil {
		return nil
	}
	return &quoteView{
		ID:           q.ID,
		CustomerID:   q.CustomerID,
		Variant:      q.Variant,
		Inputs:       json.RawMessage(q.Inputs),
		PriceMin:     q.PriceMin,
		PriceMax:     q.PriceMax,
		Breakdown:    json.RawMessage(q.Breakdown),
		RatesVersion: q.RatesVersion,
		CreatedAt:    q.CreatedAt,
	}
}

type leadDetail struct {
	Lead     storage.Lead      `json:"lead"`
	Customer *storage.Customer `json:"customer,omitempty"`
	Quote    *quoteView        `json:"quote,omitempty"`
	Message  *storage.Message  `json:"message,omitempty"`
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

func (h *handler) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.LeadFilter{
		Status: q.Get("status"),
		Source: q.Get("source"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if f.Status != "" && !quotes.ValidStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(f.Status))
		return
	}
	leads, err := h.Store.ListLeads(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if leads == nil {
		leads = []storage.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *handler) getLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lead, err := h.Store.GetLead(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	out := leadDetail{Lead: *lead}
	if out.Customer, err = h.Store.GetCustomer(ctx, lead.CustomerID); err != nil {
		handleError(w, r, err)
		return
	}
	if lead.QuoteID != "" {
		q, err := h.Store.GetQuote(ctx, lead.QuoteID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		out.Quote = newQuoteView(q)
	}
	if lead.MessageID != "" {
		if out.Message, err = h.Store.GetMessage(ctx, lead.MessageID); err != nil {
			handleError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) updateLead(w http.ResponseWriter, r *http.Request) {
	var req quotes.LeadUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	lead, err := h.Quotes.UpdateLead(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if customers == nil {
		customers = []storage.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *handler) getQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.Store.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	writeJSON(w, http.StatusOK, newQuoteView(q))
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	msgs, err := h.Store.ListMessages(r.Context(), unread)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []storage.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Read *bool `json:"read"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Read == nil {
		writeError(w, http.StatusBadRequest, "read is required")
		return
	}
	if err := h.Store.SetMessageRead(r.Context(), chi.URLParam(r, "id"), *req.Read); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteMessage(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type snapshotView struct {
	Version     string          `json:"version"`
	PublishedBy string          `json:"published_by"`
	PublishedAt time.Time       `json:"published_at"`
	Rates       json.RawMessage `json:"rates"`
}

func (h *handler) ratesHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Rates.History(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]snapshotView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotView{
			Version:     s.Version,
			PublishedBy: s.PublishedBy,
			PublishedAt: s.PublishedAt,
			Rates:       json.RawMessage(s.Payload),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func publisher(r *http.Request) string {
	if t, ok := auth.TokenFromContext(r.Context()); ok {
		return t.UserID
	}
	return ""
}

// publishRates replaces the live rate table. The body is a full rate
// document; unknown keys are rejected.
func (h *handler) publishRates(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := rates.ParseJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cur, err := h.Rates.Publish(r.Context(), doc, publisher(r))
	if errors.Is(err, rates.ErrInvalidDocument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (h *handler) getEmailSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Email.GetConfig(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if cfg == nil {
		cfg = &storage.EmailConfig{}
	}
	if cfg.Password != "" {
		cfg.Password = secretMask
	}
	if cfg.APIKey != "" {
		cfg.APIKey = secretMask
	}
	writeJSON(w, http.StatusOK, cfg)
}

// putEmailSettings saves the email config. Masked secrets echoed back from
// a previous GET keep their stored values.
func (h *handler) putEmailSettings(w http.ResponseWriter, r *http.Request) {
	var req storage.EmailConfig
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == secretMask || req.APIKey == secretMask {
		cur, err := h.Email.GetConfig(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if cur == nil {
			cur = &storage.EmailConfig{}
		}
		if req.Password == secretMask {
			req.Password = cur.Password
		}
		if req.APIKey == secretMask {
			req.APIKey = cur.APIKey
		}
	}
	if err := h.Email.SaveConfig(r.Context(), req); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) testEmailSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config storage.EmailConfig `json:"config"`
		To     string              `json:"to"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	if err := h.Email.TestConfig(r.Context(), req.Config, req.To); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type workerSettings struct {
	Interval string                `json:"interval"`
	LastRun  *storage.ScheduledJob `json:"last_run,omitempty"`
}

func (h *handler) getWorkerSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interval, err := h.Store.GetSetting(ctx, cron.SettingFollowupInterval)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if interval == "" {
		interval = h.cfg.FollowupInterval
	}
	job, err := h.Store.GetScheduledJob(ctx, cron.JobFollowup)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workerSettings{Interval: interval, LastRun: job})
}

func (h *handler) putWorkerSettings(w http.ResponseWriter, r *http.Request) {
	var req workerSettings
	if !decodeBody(w, r, &req) {
		return
	}
	if err := cron.ValidateSchedule(req.Interval); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.SetSetting(r.Context(), cron.SettingFollowupInterval, req.Interval); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workerSettings{Interval: req.Interval})
}
