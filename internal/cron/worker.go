package cron

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bher20/equotemanager/internal/alerting"
	"github.com/bher20/equotemanager/internal/metrics"
	"github.com/bher20/equotemanager/internal/notification"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// JobFollowup is the scheduled_jobs row and metrics label of the worker.
	JobFollowup = "lead_followup"
	// SettingFollowupInterval overrides Config.Interval at runtime.
	SettingFollowupInterval = "followup_interval"

	lockKey         int64 = 42
	defaultInterval       = time.Hour
)

// Digester emails the stale-lead digest. *notification.Service satisfies it.
type Digester interface {
	SendDigest(ctx context.Context, to string, leads []storage.Lead, after time.Duration) error
}

// Alerter posts chat alerts. *alerting.Alerter satisfies it.
type Alerter interface {
	Send(ctx context.Context, alert alerting.Alert) error
}

type Config struct {
	// Interval is integer seconds or a standard cron expression.
	Interval   string
	StaleAfter time.Duration
	NotifyTo   string
	// Tick is how often the control loop checks the schedule.
	Tick time.Duration
}

// Worker reminds the business about leads nobody has followed up on.
type Worker struct {
	store   storage.Storage
	mailer  Digester
	alerter Alerter
	cfg     Config
	now     func() time.Time
}

// Report summarises one worker run.
type Report struct {
	Skipped  bool
	Stale    int
	Reminded int
}

func NewWorker(st storage.Storage, mailer Digester, alerter Alerter, cfg Config) *Worker {
	if cfg.Interval == "" {
		cfg.Interval = strconv.Itoa(int(defaultInterval.Seconds()))
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 48 * time.Hour
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Second
	}
	return &Worker{
		store:   st,
		mailer:  mailer,
		alerter: alerter,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ValidateSchedule accepts positive integer seconds or a standard five-field
// cron expression.
func ValidateSchedule(setting string) error {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.Atoi(setting); err == nil {
		if v <= 0 {
			return fmt.Errorf("interval must be positive, got %d", v)
		}
		return nil
	}
	if _, err := cron.ParseStandard(setting); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", setting, err)
	}
	return nil
}

// NextRun returns when a job with the given schedule should next run after
// last. Unparseable settings fall back to hourly.
func NextRun(setting string, last time.Time) time.Time {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return last.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(last)
	}
	return last.Add(defaultInterval)
}

// Run executes the follow-up job on its schedule until ctx is cancelled.
// The schedule setting is re-read on every tick so admin changes apply
// without a restart.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.schedule(ctx, w.cfg.Interval)
	log := zap.L().With(zap.String("job", JobFollowup))
	log.Info("follow-up worker starting", zap.String("interval", interval), zap.Duration("stale_after", w.cfg.StaleAfter))

	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	nextRun := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val := w.schedule(ctx, interval); val != interval {
				log.Info("follow-up interval updated", zap.String("from", interval), zap.String("to", val))
				interval = val
				nextRun = NextRun(interval, time.Now())
			}
			if time.Now().Before(nextRun) {
				continue
			}
			rep, err := w.RunOnce(ctx)
			switch {
			case err != nil:
				log.Error("follow-up run failed", zap.Error(err))
			case rep.Skipped:
				log.Info("advisory lock held by another worker, skipping run")
			default:
				log.Info("follow-up run completed", zap.Int("stale", rep.Stale), zap.Int("reminded", rep.Reminded))
			}
			nextRun = NextRun(interval, time.Now())
		}
	}
}

// schedule returns the stored interval override, or fallback.
func (w *Worker) schedule(ctx context.Context, fallback string) string {
	val, err := w.store.GetSetting(ctx, SettingFollowupInterval)
	if err != nil {
		zap.L().Warn("read follow-up interval failed", zap.Error(err))
		return fallback
	}
	if val == "" {
		return fallback
	}
	if err := ValidateSchedule(val); err != nil {
		zap.L().Warn("ignoring invalid follow-up interval", zap.String("value", val), zap.Error(err))
		return fallback
	}
	return val
}

// RunOnce sends one digest of leads still new after StaleAfter. Leads are
// marked reminded only when at least one channel delivered, so nothing is
// lost while notifications are unconfigured.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	started := time.Now()

	ok, err := w.store.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		err = eris.Wrap(err, "acquire advisory lock")
		metrics.UpdateJobMetrics(JobFollowup, started, err)
		return Report{}, err
	}
	if !ok {
		return Report{Skipped: true}, nil
	}

	rep, runErr := func() (Report, error) {
		defer func() {
			if _, err := w.store.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				zap.L().Warn("release advisory lock failed", zap.Error(err))
			}
		}()
		return w.remind(ctx)
	}()

	metrics.UpdateJobMetrics(JobFollowup, started, runErr)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.store.UpdateScheduledJob(ctx, JobFollowup, started, time.Since(started), runErr == nil, errMsg); err != nil {
		zap.L().Warn("update scheduled_jobs failed", zap.Error(err))
	}
	return rep, runErr
}

func (w *Worker) remind(ctx context.Context) (Report, error) {
	now := w.now()
	leads, err := w.store.ListStaleLeads(ctx, now.Add(-w.cfg.StaleAfter))
	if err != nil {
		return Report{}, eris.Wrap(err, "list stale leads")
	}
	metrics.StaleLeads.Set(float64(len(leads)))

	var pending []storage.Lead
	for _, l := range leads {
		if l.RemindedAt == nil {
			pending = append(pending, l)
		}
	}
	rep := Report{Stale: len(leads)}
	if len(pending) == 0 {
		return rep, nil
	}

	delivered := false
	var errs []error
	if w.mailer != nil && w.cfg.NotifyTo != "" {
		err := w.mailer.SendDigest(ctx, w.cfg.NotifyTo, pending, w.cfg.StaleAfter)
		switch {
		case errors.Is(err, notification.ErrNotConfigured):
			zap.L().Debug("email not configured, skipping digest")
		case err != nil:
			metrics.ObserveNotification("email", err)
			errs = append(errs, eris.Wrap(err, "send digest email"))
		default:
			metrics.ObserveNotification("email", nil)
			delivered = true
		}
	}
	if w.alerter != nil {
		err := w.alerter.Send(ctx, alerting.StaleLeadsAlert(pending, w.cfg.StaleAfter, now))
		metrics.ObserveNotification("webhook", err)
		if err != nil {
			errs = append(errs, eris.Wrap(err, "send digest webhook"))
		} else {
			delivered = true
		}
	}

	if delivered {
		ids := make([]string, len(pending))
		for i, l := range pending {
			ids[i] = l.ID
		}
		if err := w.store.MarkLeadsReminded(ctx, ids, now); err != nil {
			return rep, eris.Wrap(err, "mark leads reminded")
		}
		rep.Reminded = len(ids)
	}
	return rep, errors.Join(errs...)
}
