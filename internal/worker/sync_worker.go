// Package worker mirrors an upstream bank source into the local SQLite store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bankfees/internal/amqp"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
)

// Sync triggers, as recorded in sync_runs and the sync_runs_total metric.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerMessage  = "amqp"
)

var errEmptyUpstream = errors.New("upstream returned no banks")

// Mirror is the store a sync writes to.
type Mirror interface {
	source.BankWriter
	RecordSync(ctx context.Context, sourceName, trigger string, count int) error
}

// SyncWorker copies the full bank list from upstream into the mirror. Runs
// are serialized; a run that finds zero banks leaves the mirror untouched.
type SyncWorker struct {
	upstream   source.BankLister
	mirror     Mirror
	sourceName string
	logger     *applog.Logger
	metrics    *metrics.Metrics

	mu sync.Mutex
}

// NewSyncWorker builds a worker. sourceName labels sync runs, typically the
// SYNC_SOURCE backend. logger and m may be nil.
func NewSyncWorker(upstream source.BankLister, mirror Mirror, sourceName string, logger *applog.Logger, m *metrics.Metrics) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		upstream:   upstream,
		mirror:     mirror,
		sourceName: sourceName,
		logger:     logger.WithComponent(applog.ComponentWorker),
		metrics:    m,
	}
}

// Sync fetches every bank and replaces the mirror with them. It returns the
// number of banks written.
func (w *SyncWorker) Sync(ctx context.Context, trigger string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	n, err := w.sync(ctx, trigger)
	w.metrics.RecordSync(trigger, n, err)

	if errors.Is(err, errEmptyUpstream) {
		w.logger.WarnContext(ctx, "Upstream returned no banks, keeping current mirror",
			applog.FieldOperation, applog.OpSync,
			applog.FieldBackend, w.sourceName,
			"trigger", trigger)
		return 0, nil
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Sync failed",
			applog.FieldOperation, applog.OpSync,
			applog.FieldBackend, w.sourceName,
			applog.FieldError, err,
			"trigger", trigger)
		return 0, err
	}

	w.logger.InfoContext(ctx, "Sync completed",
		applog.FieldOperation, applog.OpSync,
		applog.FieldBackend, w.sourceName,
		applog.FieldCount, n,
		applog.FieldDuration, time.Since(start).Milliseconds(),
		"trigger", trigger)
	return n, nil
}

func (w *SyncWorker) sync(ctx context.Context, trigger string) (int, error) {
	banks, err := w.upstream.ListBanks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list upstream banks: %w", err)
	}
	if len(banks) == 0 {
		return 0, errEmptyUpstream
	}
	if err := w.mirror.ReplaceBanks(ctx, banks); err != nil {
		return 0, fmt.Errorf("replace mirrored banks: %w", err)
	}
	// The mirror is already current; a lost audit row is only logged.
	if err := w.mirror.RecordSync(ctx, w.sourceName, trigger, len(banks)); err != nil {
		w.logger.WarnContext(ctx, "Failed to record sync run", applog.FieldError, err)
	}
	return len(banks), nil
}

// StartupSync runs one sync before the worker starts listening, so a
// restarted worker catches up on changes it missed.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	_, err := w.Sync(ctx, TriggerStartup)
	return err
}

// HandleRefreshMessage is the AMQP handler. A returned error requeues the
// message.
func (w *SyncWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	w.logger.InfoContext(ctx, "Refresh requested",
		"message_id", msg.ID,
		"reason", msg.Reason)
	_, err := w.Sync(ctx, TriggerMessage)
	return err
}

// Run syncs every interval until ctx is done. Failures are logged and the
// next tick retries.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Sync(ctx, TriggerInterval)
		}
	}
}
