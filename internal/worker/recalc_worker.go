package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/promorang/maturity-service/internal/config"
	"github.com/promorang/maturity-service/internal/repository"
	"github.com/promorang/maturity-service/internal/service"
)

// RecalcWorker periodically re-evaluates the maturity state of
// recently active users. Balances can change out-of-band (the wallet
// service credits gems directly), so promotions must not depend solely
// on the next recorded action.
type RecalcWorker struct {
	cron     *cron.Cron
	users    repository.UserRepository
	maturity *service.MaturityService
	cfg      config.RecalcConfig
	logger   *zap.Logger
}

// NewRecalcWorker builds the sweep scheduler.
func NewRecalcWorker(users repository.UserRepository, maturity *service.MaturityService, cfg config.RecalcConfig, logger *zap.Logger) *RecalcWorker {
	return &RecalcWorker{
		cron:     cron.New(),
		users:    users,
		maturity: maturity,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start schedules the sweep. No-op when disabled by config.
func (w *RecalcWorker) Start(ctx context.Context) error {
	if !w.cfg.SweepEnabled {
		w.logger.Info("recalculation sweep disabled")
		return nil
	}
	if _, err := w.cron.AddFunc(w.cfg.SweepSchedule, func() { w.sweep(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("recalculation sweep scheduled", zap.String("schedule", w.cfg.SweepSchedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *RecalcWorker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
}

func (w *RecalcWorker) sweep(ctx context.Context) {
	since := time.Now().Add(-w.cfg.Lookback())
	ids, err := w.users.ListActiveSince(ctx, since, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("list active users for sweep", zap.Error(err))
		return
	}

	promoted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		result := w.maturity.Recalculate(ctx, id, service.RecalcOptions{})
		if result.Changed {
			promoted++
		}
	}
	w.logger.Info("recalculation sweep complete",
		zap.Int("evaluated", len(ids)),
		zap.Int("promoted", promoted))
}
