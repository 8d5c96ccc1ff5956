// Package main provides the TAC bot server entry point.
package main

import (
	"context"
	"sync/atomic"

	"github.com/imapex/tacbot-go/internal/bot"
	"github.com/imapex/tacbot-go/internal/caseapi"
	"github.com/imapex/tacbot-go/internal/config"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/metrics"
	"github.com/imapex/tacbot-go/internal/spark"
	"github.com/imapex/tacbot-go/internal/webhook"
)

// app ties the static configuration to the swappable bot runtime.
// The runtime pointer is replaced wholesale whenever Spark credentials
// change, so request handlers read one consistent snapshot.
type app struct {
	cfg     *config.Config
	cases   *caseapi.Client
	metrics *metrics.Metrics
	logger  *logger.Logger

	runtime atomic.Pointer[webhook.Runtime]
}

func newApp(cfg *config.Config, cases *caseapi.Client, m *metrics.Metrics, log *logger.Logger) *app {
	return &app{
		cfg:     cfg,
		cases:   cases,
		metrics: m,
		logger:  log,
	}
}

// currentRuntime returns the active runtime, or nil while credentials
// have not been configured.
func (a *app) currentRuntime() *webhook.Runtime {
	return a.runtime.Load()
}

// applyCredentials builds a gateway and composer for the credentials
// and swaps them in as the new runtime. The bot's own person id is
// resolved best-effort; webhook self-filtering falls back to the email
// when the lookup fails.
func (a *app) applyCredentials(ctx context.Context, creds *config.Credentials) {
	gateway := spark.NewClient(a.cfg.SparkAPIBaseURL, creds.Token, a.cfg.SparkAPITimeout, a.metrics)

	rt := &webhook.Runtime{
		Gateway:  gateway,
		Composer: bot.NewComposer(gateway, a.cases, a.cfg.FeedbackRoomID, a.logger, a.metrics),
		BotEmail: creds.Email,
	}

	if me, err := gateway.Me(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to resolve bot identity; self-filtering by email only")
	} else {
		rt.BotPersonID = me.ID
	}

	a.cfg.SetCredentials(creds)
	a.runtime.Store(rt)
	a.logger.WithField("bot_email", creds.Email).Info("Spark credentials applied")
}
