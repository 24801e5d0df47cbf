package rates

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Current describes the document the engine is pricing with.
type Current struct {
	Document    Document  `json:"rates"`
	Version     string    `json:"version"`
	Source      string    `json:"source"`
	PublishedBy string    `json:"published_by,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Service owns the pricing engine's rate table. It prefers the latest
// published snapshot in storage and falls back to a startup document.
type Service struct {
	engine *pricing.Engine
	store  storage.Storage // may be nil

	mu      sync.Mutex // serialises Publish
	current atomic.Pointer[Current]
}

// NewService builds the engine from the latest stored snapshot, or from
// fallback when there is none. A snapshot that no longer validates is
// logged and skipped.
func NewService(ctx context.Context, st storage.Storage, fallback Document, fallbackSource string) (*Service, error) {
	cur := &Current{
		Document: fallback,
		Version:  fallback.Checksum()[:12],
		Source:   fallbackSource,
	}
	if st != nil {
		snap, err := st.GetLatestRatesSnapshot(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load rates snapshot")
		}
		if snap != nil {
			if c, err := fromSnapshot(snap); err != nil {
				zap.L().Warn("rates: ignoring invalid snapshot", zap.String("version", snap.Version), zap.Error(err))
			} else {
				cur = c
			}
		}
	}

	rt, err := cur.Document.Table()
	if err != nil {
		return nil, err
	}
	rt.Version = cur.Version
	engine, err := pricing.NewEngine(rt)
	if err != nil {
		return nil, err
	}
	s := &Service{engine: engine, store: st}
	s.current.Store(cur)
	zap.L().Info("rates: loaded", zap.String("source", cur.Source), zap.String("version", cur.Version))
	return s, nil
}

func fromSnapshot(snap *storage.RatesSnapshot) (*Current, error) {
	doc, err := ParseJSON(snap.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := doc.Table(); err != nil {
		return nil, err
	}
	return &Current{
		Document:    doc,
		Version:     snap.Version,
		Source:      SourceSnapshot,
		PublishedBy: snap.PublishedBy,
		PublishedAt: snap.PublishedAt,
	}, nil
}

// Engine returns the pricing engine kept in sync with published rates. Its
// results carry the version of the table that priced them, which may be
// newer than a Current read moments earlier.
func (s *Service) Engine() *pricing.Engine { return s.engine }

// Current returns the document currently in effect.
func (s *Service) Current() Current { return *s.current.Load() }

// Publish validates doc, persists it as a new snapshot and swaps it into the
// engine. Publishing a document identical to the current one is a no-op.
func (s *Service) Publish(ctx context.Context, doc Document, by string) (Current, error) {
	rt, err := doc.Table()
	if err != nil {
		return Current{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	sum := doc.Checksum()
	if prev.Document.Checksum() == sum {
		return *prev, nil
	}

	now := time.Now().UTC()
	cur := &Current{
		Document:    doc,
		Version:     now.Format("20060102T150405Z") + "-" + sum[:8],
		Source:      SourceSnapshot,
		PublishedBy: by,
		PublishedAt: now,
	}
	if s.store != nil {
		payload, err := json.Marshal(doc)
		if err != nil {
			return Current{}, eris.Wrap(err, "encode rates")
		}
		if err := s.store.SaveRatesSnapshot(ctx, storage.RatesSnapshot{
			Version:     cur.Version,
			Payload:     payload,
			PublishedBy: by,
			PublishedAt: now,
		}); err != nil {
			return Current{}, eris.Wrap(err, "save rates snapshot")
		}
	}
	rt.Version = cur.Version
	if err := s.engine.Swap(rt); err != nil {
		return Current{}, err
	}
	s.current.Store(cur)
	zap.L().Info("rates: published", zap.String("version", cur.Version), zap.String("by", by))
	return *cur, nil
}

// History lists previously published snapshots, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]storage.RatesSnapshot, error) {
	if s.store == nil {
		return nil, nil
	}
	snaps, err := s.store.ListRatesSnapshots(ctx, limit)
	return snaps, eris.Wrap(err, "list rates snapshots")
}
