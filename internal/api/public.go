package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bher20/equotemanager/internal/auth"
	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/bher20/equotemanager/internal/quotes"
	"go.uber.org/zap"
)

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) livez(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("live"))
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		zap.L().Warn("readyz: db ping failed", zap.Error(err))
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type calculateRequest struct {
	Variant pricing.Variant `json:"variant"`
	Inputs  json.RawMessage `json:"inputs"`
}

func (h *handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Variant == "" {
		req.Variant = pricing.VariantResidential
	}
	_, res, err := h.Quotes.Estimate(req.Variant, req.Inputs)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) currentRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Rates.Current())
}

type pricingSummary struct {
	PriceMin int64 `json:"priceMin"`
	PriceMax int64 `json:"priceMax"`
}

type submitResponse struct {
	Success bool           `json:"success"`
	QuoteID string         `json:"quoteId"`
	Pricing pricingSummary `json:"pricing"`
}

func (h *handler) submitQuote(w http.ResponseWriter, r *http.Request) {
	var sub quotes.Submission
	if !decodeBody(w, r, &sub) {
		return
	}
	rcpt, err := h.Quotes.Submit(r.Context(), sub)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		Success: true,
		QuoteID: rcpt.QuoteID,
		Pricing: pricingSummary{PriceMin: rcpt.Pricing.PriceMin, PriceMax: rcpt.Pricing.PriceMax},
	})
}

func (h *handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	var msg quotes.ContactMessage
	if !decodeBody(w, r, &msg) {
		return
	}
	rcpt, err := h.Quotes.SubmitMessage(r.Context(), msg)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"messageId": rcpt.MessageID,
	})
}

type tokenRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in"`
}

type tokenResponse struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// issueToken exchanges a username and password for an API token. Tokens
// default to 30 days.
func (h *handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ExpiresIn == "" {
		req.ExpiresIn = "30d"
	}
	expiresAt, err := auth.TokenExpiry(req.ExpiresIn, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "api"
	}
	tok, raw, err := h.Auth.CreateToken(r.Context(), user.ID, name, user.Role, expiresAt)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{ID: tok.ID, Token: raw, Role: tok.Role, ExpiresAt: tok.ExpiresAt})
}
