package main

import (
	"context"

	"github.com/bher20/equotemanager/internal/alerting"
	"github.com/bher20/equotemanager/internal/migrate"
	"github.com/bher20/equotemanager/internal/notification"
	"github.com/bher20/equotemanager/internal/quotes"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// appEnv holds the services shared by the serve, worker and admin commands.
type appEnv struct {
	Store   storage.Storage
	Rates   *rates.Service
	Email   *notification.Service
	Alerter *alerting.Alerter // nil when no webhook is configured
}

func initApp(ctx context.Context) (*appEnv, error) {
	if cfg.DB.AutoMigrate && cfg.DB.Driver != "memory" {
		if err := migrate.Up(ctx, cfg.DB.Driver, cfg.DB.DSN); err != nil {
			return nil, eris.Wrap(err, "auto-migrate")
		}
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN})
	if err != nil {
		return nil, eris.Wrap(err, "open storage")
	}

	doc, source, err := rates.Resolve(cfg.Rates.File)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load rates")
	}
	rs, err := rates.NewService(ctx, st, doc, source)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init rates")
	}
	cur := rs.Current()
	zap.L().Info("rates loaded", zap.String("source", cur.Source), zap.String("version", cur.Version))

	env := &appEnv{
		Store: st,
		Rates: rs,
		Email: notification.NewService(st),
	}
	alertCfg := alerting.AlertConfig{WebhookURL: cfg.Alert.WebhookURL, WebhookType: cfg.Alert.WebhookType}
	if alertCfg.Enabled() {
		env.Alerter = alerting.NewAlerter(alertCfg)
	}
	return env, nil
}

func (e *appEnv) quoteOptions() quotes.Options {
	opts := quotes.Options{Mailer: e.Email, NotifyTo: cfg.Notify.To}
	if e.Alerter != nil {
		opts.Alerter = e.Alerter
	}
	return opts
}

func (e *appEnv) Close() error {
	return e.Store.Close()
}
