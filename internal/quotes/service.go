package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bher20/equotemanager/internal/alerting"
	"github.com/bher20/equotemanager/internal/metrics"
	"github.com/bher20/equotemanager/internal/notification"
	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const notifyTimeout = 30 * time.Second

// Mailer sends the new-lead email. *notification.Service satisfies it.
type Mailer interface {
	NotifyNewLead(ctx context.Context, to string, e notification.LeadEmail) error
}

// Alerter posts chat alerts. *alerting.Alerter satisfies it.
type Alerter interface {
	Send(ctx context.Context, alert alerting.Alert) error
}

// Options configures the background notifications of a Service. Zero
// values disable the matching channel.
type Options struct {
	Mailer   Mailer
	NotifyTo string
	Alerter  Alerter
}

// Service prices, stores and announces form submissions.
type Service struct {
	store storage.Storage
	rates *rates.Service
	opts  Options

	now   func() time.Time
	newID func() string

	wg sync.WaitGroup
}

func NewService(st storage.Storage, rs *rates.Service, opts Options) *Service {
	return &Service{
		store: st,
		rates: rs,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Estimate prices raw inputs for variant without storing anything. The
// result's RatesVersion names the table it was priced with.
func (s *Service) Estimate(variant pricing.Variant, raw json.RawMessage) (pricing.Inputs, pricing.Result, error) {
	in, res, err := s.rates.Engine().CalculateJSON(variant, raw)
	if err != nil {
		metrics.QuoteErrorsTotal.WithLabelValues(variantLabel(variant), errorReason(err)).Inc()
		return nil, pricing.Result{}, err
	}
	metrics.ObserveQuote(string(variant), res.PriceMin, res.PriceMax)
	return in, res, nil
}

// Submit validates a quote request, reprices it with the live rate table and
// stores customer, quote and lead together. Notifications go out after the
// write and never fail the request.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	info := sub.CustomerInfo.trimmed()
	if err := info.validate(); err != nil {
		return nil, err
	}
	variant := sub.Variant
	if variant == "" {
		variant = pricing.VariantResidential
	}

	in, res, err := s.Estimate(variant, sub.Inputs)
	if err != nil {
		return nil, err
	}
	if sub.Pricing != nil && (sub.Pricing.PriceMin != res.PriceMin || sub.Pricing.PriceMax != res.PriceMax) {
		zap.L().Info("client estimate differs from server pricing",
			zap.Int64("client_min", sub.Pricing.PriceMin),
			zap.Int64("client_max", sub.Pricing.PriceMax),
			zap.Int64("price_min", res.PriceMin),
			zap.Int64("price_max", res.PriceMax))
	}

	inputsJSON, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "quotes: encode inputs")
	}
	breakdownJSON, err := json.Marshal(res.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "quotes: encode breakdown")
	}

	now := s.now()
	customer := info.record(s.newID())
	customer.CreatedAt = now
	quote := &storage.Quote{
		ID:           s.newID(),
		CustomerID:   customer.ID,
		Variant:      string(variant),
		Inputs:       inputsJSON,
		PriceMin:     res.PriceMin,
		PriceMax:     res.PriceMax,
		Breakdown:    breakdownJSON,
		RatesVersion: res.RatesVersion,
		CreatedAt:    now,
	}
	lead := storage.Lead{
		ID:         s.newID(),
		CustomerID: customer.ID,
		QuoteID:    quote.ID,
		Source:     storage.LeadSourceQuoteForm,
		Status:     storage.LeadStatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSubmission(ctx, storage.Submission{Customer: customer, Quote: quote, Lead: lead}); err != nil {
		return nil, eris.Wrap(err, "quotes: create submission")
	}
	metrics.LeadsCreatedTotal.WithLabelValues(lead.Source).Inc()
	zap.L().Info("quote submitted",
		zap.String("lead_id", lead.ID),
		zap.String("quote_id", quote.ID),
		zap.String("variant", quote.Variant),
		zap.Int64("price_min", res.PriceMin),
		zap.Int64("price_max", res.PriceMax))

	s.notify(notification.LeadEmail{Lead: lead, Customer: customer, Quote: quote})

	return &Receipt{QuoteID: quote.ID, LeadID: lead.ID, CustomerID: customer.ID, Pricing: res}, nil
}

// SubmitMessage stores a contact form message and opens a lead for it.
func (s *Service) SubmitMessage(ctx context.Context, m ContactMessage) (*MessageReceipt, error) {
	info := m.CustomerInfo.trimmed()
	if info.FirstName == "" {
		return nil, fieldErr("customerInfo.firstName", "is required")
	}
	if err := validateEmail("customerInfo.email", info.Email); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(m.Message)
	if body == "" {
		return nil, fieldErr("message", "is required")
	}

	now := s.now()
	customer := info.record(s.newID())
	customer.CreatedAt = now
	msg := &storage.Message{
		ID:         s.newID(),
		CustomerID: customer.ID,
		Subject:    strings.TrimSpace(m.Subject),
		Body:       body,
		CreatedAt:  now,
	}
	lead := storage.Lead{
		ID:         s.newID(),
		CustomerID: customer.ID,
		MessageID:  msg.ID,
		Source:     storage.LeadSourceContactForm,
		Status:     storage.LeadStatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSubmission(ctx, storage.Submission{Customer: customer, Message: msg, Lead: lead}); err != nil {
		return nil, eris.Wrap(err, "quotes: create message")
	}
	metrics.LeadsCreatedTotal.WithLabelValues(lead.Source).Inc()
	zap.L().Info("contact message received", zap.String("lead_id", lead.ID), zap.String("message_id", msg.ID))

	s.notify(notification.LeadEmail{Lead: lead, Customer: customer, Message: msg})

	return &MessageReceipt{MessageID: msg.ID, LeadID: lead.ID, CustomerID: customer.ID}, nil
}

// UpdateLead applies a status and/or notes change from the admin area.
func (s *Service) UpdateLead(ctx context.Context, id string, u LeadUpdate) (*storage.Lead, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "quotes: get lead")
	}
	if lead == nil {
		return nil, ErrNotFound
	}
	if u.Status != nil {
		next := strings.TrimSpace(*u.Status)
		if err := checkTransition(lead.Status, next); err != nil {
			return nil, err
		}
		lead.Status = next
	}
	if u.Notes != nil {
		lead.Notes = *u.Notes
	}
	lead.UpdatedAt = s.now()
	if err := s.store.UpdateLead(ctx, *lead); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "quotes: update lead")
	}
	return lead, nil
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) notify(e notification.LeadEmail) {
	sendMail := s.opts.Mailer != nil && s.opts.NotifyTo != ""
	if !sendMail && s.opts.Alerter == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		log := zap.L().With(zap.String("lead_id", e.Lead.ID))
		if sendMail {
			err := s.opts.Mailer.NotifyNewLead(ctx, s.opts.NotifyTo, e)
			switch {
			case errors.Is(err, notification.ErrNotConfigured):
				log.Debug("email not configured, skipping new-lead email")
			case err != nil:
				metrics.ObserveNotification("email", err)
				log.Warn("new-lead email failed", zap.Error(err))
			default:
				metrics.ObserveNotification("email", nil)
			}
		}
		if s.opts.Alerter != nil {
			err := s.opts.Alerter.Send(ctx, alerting.LeadAlert(e.Lead, e.Customer, e.Quote))
			metrics.ObserveNotification("webhook", err)
			if err != nil {
				log.Warn("new-lead webhook failed", zap.Error(err))
			}
		}
	}()
}

func variantLabel(v pricing.Variant) string {
	if v.Valid() {
		return string(v)
	}
	return "unknown"
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, pricing.ErrMissingInput):
		return "missing_input"
	case errors.Is(err, pricing.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
