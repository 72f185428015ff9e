package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/goal_vault/model"
	"github.com/goal_vault/repository"
)

const (
	defaultSweepInterval = 30 * time.Second
	sweepBatchSize       = 100
)

// SweeperConfig holds configuration for the reconciliation sweeper.
type SweeperConfig struct {
	Goals    *repository.GoalRepository
	Queue    *repository.ReconcileRepository
	Interval time.Duration
	Logger   zerolog.Logger
}

// ReconcileSweeper retries queued "confirmed on-chain, not yet patched
// off-chain" effects until the store accepts them. Entries that keep failing
// stay queued with an attempt count; they are never dropped.
type ReconcileSweeper struct {
	goals    *repository.GoalRepository
	queue    *repository.ReconcileRepository
	interval time.Duration
	log      zerolog.Logger
}

func NewReconcileSweeper(cfg SweeperConfig) *ReconcileSweeper {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultSweepInterval
	}
	return &ReconcileSweeper{
		goals:    cfg.Goals,
		queue:    cfg.Queue,
		interval: interval,
		log:      cfg.Logger.With().Str("component", "reconcile_sweeper").Logger(),
	}
}

// Start begins the background sweep loop.
func (s *ReconcileSweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *ReconcileSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep retries one batch of queued entries, oldest first.
func (s *ReconcileSweeper) Sweep(ctx context.Context) {
	entries, err := s.queue.ListPending(ctx, sweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("could not list reconciliation entries")
		return
	}
	for i := range entries {
		entry := &entries[i]
		if err := s.apply(ctx, entry); err != nil {
			s.log.Error().Err(err).
				Uint("entry", entry.ID).
				Str("goal", entry.GoalID.String()).
				Int("attempts", entry.Attempts+1).
				Msg("reconciliation retry failed")
			if rErr := s.queue.RecordFailure(ctx, entry.ID, err.Error()); rErr != nil {
				s.log.Error().Err(rErr).Uint("entry", entry.ID).Msg("could not record reconciliation failure")
			}
			continue
		}
		if err := s.queue.Delete(ctx, entry.ID); err != nil {
			s.log.Error().Err(err).Uint("entry", entry.ID).Msg("could not delete reconciled entry")
			continue
		}
		s.log.Info().Uint("entry", entry.ID).Str("goal", entry.GoalID.String()).Msg("entry reconciled")
	}
}

func (s *ReconcileSweeper) apply(ctx context.Context, entry *model.ReconcileEntry) error {
	switch entry.Kind {
	case model.TxKindGoalCreation:
		if entry.OnChainGoalID == nil {
			return errors.New("creation entry without on-chain id")
		}
		_, err := s.goals.BindOnChainID(ctx, entry.GoalID, entry.TxID, *entry.OnChainGoalID)
		if errors.Is(err, repository.ErrAlreadyBound) {
			return nil // bound meanwhile, nothing left to patch
		}
		return err
	case model.TxKindDeposit:
		_, err := s.goals.ApplyDeposit(ctx, entry.GoalID, entry.TxID, entry.Amount)
		return err
	case model.TxKindWithdrawal, model.TxKindEarlyWithdrawal:
		_, err := s.goals.ApplyWithdrawal(ctx, entry.GoalID, entry.TxID, entry.Amount)
		return err
	}
	return errors.Errorf("unknown entry kind %q", entry.Kind)
}
