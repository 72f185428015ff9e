package service

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/goal_vault/model"
	"github.com/goal_vault/repository"
)

// Bridge is the ledger surface the orchestrator drives. *LedgerBridge
// implements it; tests substitute a fake.
type Bridge interface {
	Submit(ctx context.Context, op Operation) (*PendingTx, error)
	Await(ctx context.Context, pending *PendingTx) (*types.Receipt, error)
	ExtractGoalID(receipt *types.Receipt) (uint64, error)
	CanWithdraw(ctx context.Context, onChainID uint64) (bool, string, error)
}

// ethAssetAddress is the zero address, the vault's marker for native ETH.
var ethAssetAddress = common.Address{}

// GoalService reconciles the off-chain record store with the ledger. Each
// goal's reconciliation is an isolated task: confirmation waits run in their
// own goroutine, serialized per goal by allowing one outstanding ledger
// operation per goal at a time, with full parallelism across goals.
//
// The off-chain effect of every operation is applied only after its ledger
// transaction confirms, never optimistically.
type GoalService struct {
	goals  *repository.GoalRepository
	txs    *repository.TxRepository
	queue  *repository.ReconcileRepository
	bridge Bridge
	log    zerolog.Logger

	locks sync.Map // goal id -> *sync.Mutex, guards check-then-submit
	wg    sync.WaitGroup
}

func NewGoalService(
	goals *repository.GoalRepository,
	txs *repository.TxRepository,
	queue *repository.ReconcileRepository,
	bridge Bridge,
	log zerolog.Logger,
) *GoalService {
	return &GoalService{
		goals:  goals,
		txs:    txs,
		queue:  queue,
		bridge: bridge,
		log:    log.With().Str("component", "goal_service").Logger(),
	}
}

// Wait blocks until all in-flight confirmation tasks finish. Used on
// shutdown and by tests.
func (s *GoalService) Wait() { s.wg.Wait() }

type CreateGoalInput struct {
	OwnerID         string
	WalletAddress   string
	GoalType        model.GoalType
	TargetValue     decimal.Decimal
	Currency        model.Currency
	UnlockTimestamp *time.Time
	Description     string
	Legacy          bool
}

func (in *CreateGoalInput) validate(now time.Time) error {
	if in.OwnerID == "" {
		return &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if in.WalletAddress == "" {
		return &ValidationError{Field: "walletAddress", Reason: "required"}
	}
	if !in.GoalType.Valid() {
		return &ValidationError{Field: "goalType", Reason: "unknown goal type"}
	}
	if in.TargetValue.Sign() <= 0 {
		return &ValidationError{Field: "targetValue", Reason: "must be greater than zero"}
	}
	switch in.GoalType {
	case model.GoalTypeAmount:
		if in.UnlockTimestamp == nil {
			return &ValidationError{Field: "unlockTimestamp", Reason: "required for amount goals"}
		}
		if !in.UnlockTimestamp.After(now) {
			return &ValidationError{Field: "unlockTimestamp", Reason: "must be in the future"}
		}
	default:
		if !in.Currency.Valid() {
			return &ValidationError{Field: "currency", Reason: "unknown currency"}
		}
		if in.UnlockTimestamp != nil {
			return &ValidationError{Field: "unlockTimestamp", Reason: "only amount goals have an unlock date"}
		}
	}
	return nil
}

// CreateGoal runs the two-phase creation: persist a Draft, submit the
// creation transaction, and hand confirmation to a background task that binds
// the ledger identifier once the receipt arrives. The returned goal is in
// PendingChainConfirmation.
func (s *GoalService) CreateGoal(ctx context.Context, in CreateGoalInput) (*model.Goal, error) {
	if err := in.validate(time.Now()); err != nil {
		return nil, err
	}

	goal := &model.Goal{
		OwnerID:         in.OwnerID,
		WalletAddress:   in.WalletAddress,
		GoalType:        in.GoalType,
		TargetValue:     in.TargetValue,
		Currency:        in.Currency,
		UnlockTimestamp: in.UnlockTimestamp,
		Description:     in.Description,
	}
	if err := s.goals.CreateDraft(ctx, goal); err != nil {
		return nil, errors.Wrap(err, "persist draft")
	}

	lt := &model.LedgerTransaction{
		GoalID: goal.ID,
		Kind:   model.TxKindGoalCreation,
	}
	if err := s.txs.Create(ctx, lt); err != nil {
		return nil, errors.Wrap(err, "record creation transaction")
	}

	pending, err := s.bridge.Submit(ctx, Operation{
		Kind:            model.TxKindGoalCreation,
		GoalType:        in.GoalType,
		TargetValue:     in.TargetValue,
		Currency:        in.Currency,
		UnlockTimestamp: in.UnlockTimestamp,
		Description:     in.Description,
		Legacy:          in.Legacy,
	})
	if err != nil {
		s.failOperation(ctx, goal.ID, lt.ID, model.StateFailed, err.Error())
		return nil, err
	}

	if err := s.txs.SetHash(ctx, lt.ID, pending.Hash.Hex()); err != nil {
		s.log.Warn().Err(err).Str("goal", goal.ID.String()).Msg("could not record tx hash")
	}
	// The transaction is broadcast; a store-write failure here must not leave
	// it unwatched. The watcher binds or queues reconciliation either way.
	if err := s.goals.SetState(ctx, goal.ID, model.StatePending); err != nil {
		s.log.Error().Err(err).Str("goal", goal.ID.String()).Msg("could not mark goal pending, confirmation watcher continues")
	} else {
		goal.State = model.StatePending
	}

	s.spawn(func() { s.finalizeCreation(goal.ID, lt.ID, pending) })
	return goal, nil
}

func (s *GoalService) finalizeCreation(goalID, txID uuid.UUID, pending *PendingTx) {
	// Detached from the request context: confirmation may outlive it and has
	// no deadline of its own.
	ctx := context.Background()
	lg := s.log.With().Str("goal", goalID.String()).Str("tx", pending.Hash.Hex()).Logger()

	receipt, err := s.bridge.Await(ctx, pending)
	if err != nil {
		lg.Error().Err(err).Msg("goal creation failed on chain")
		s.failOperation(ctx, goalID, txID, model.StateFailed, err.Error())
		return
	}

	onChainID, err := s.bridge.ExtractGoalID(receipt)
	if err != nil {
		// Mined but unrecognizable: funds may be escrowed with no usable
		// record. Surface loudly and leave the record failed for the owner.
		lg.Error().Err(err).Msg("creation receipt mined but identifier extraction failed, orphan draft")
		s.failOperation(ctx, goalID, txID, model.StateFailed, err.Error())
		return
	}

	if _, err := s.goals.BindOnChainID(ctx, goalID, txID, onChainID); err != nil {
		if errors.Is(err, repository.ErrAlreadyBound) {
			lg.Warn().Uint64("on_chain_id", onChainID).Msg("goal already bound, duplicate confirmation ignored")
			return
		}
		// Confirmed on chain but the off-chain patch failed: queue it for the
		// reconciliation sweep instead of leaving a silent orphan.
		lg.Warn().Err(err).Uint64("on_chain_id", onChainID).Msg("bind failed after confirmation, queueing for reconciliation")
		s.enqueueReconcile(ctx, &model.ReconcileEntry{
			GoalID:        goalID,
			TxID:          txID,
			Kind:          model.TxKindGoalCreation,
			OnChainGoalID: &onChainID,
			LastError:     err.Error(),
		})
		return
	}
	lg.Info().Uint64("on_chain_id", onChainID).Msg("goal bound to ledger")
}

// Deposit submits a value-bearing deposit for a bound goal. The balance is
// credited only once the transaction confirms.
func (s *GoalService) Deposit(ctx context.Context, goalID uuid.UUID, amount decimal.Decimal) (*model.LedgerTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	mu := s.goalLock(goalID)
	mu.Lock()
	defer mu.Unlock()

	goal, err := s.readyGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}

	lt := &model.LedgerTransaction{
		GoalID:        goal.ID,
		OnChainGoalID: goal.OnChainID,
		Kind:          model.TxKindDeposit,
		Amount:        amount,
	}
	if err := s.txs.Create(ctx, lt); err != nil {
		return nil, errors.Wrap(err, "record deposit transaction")
	}

	pending, err := s.bridge.Submit(ctx, Operation{
		Kind:          model.TxKindDeposit,
		OnChainGoalID: *goal.OnChainID,
		AssetAddress:  ethAssetAddress,
		Amount:        amount,
	})
	if err != nil {
		if mErr := s.txs.MarkFailed(ctx, lt.ID, err.Error()); mErr != nil {
			s.log.Error().Err(mErr).Str("goal", goalID.String()).Msg("could not mark deposit failed")
		}
		return nil, err
	}
	if err := s.txs.SetHash(ctx, lt.ID, pending.Hash.Hex()); err != nil {
		s.log.Warn().Err(err).Str("goal", goalID.String()).Msg("could not record tx hash")
	}
	lt.TxHash = pending.Hash.Hex()

	s.spawn(func() { s.finalizeDeposit(goal.ID, lt.ID, amount, pending) })
	return lt, nil
}

func (s *GoalService) finalizeDeposit(goalID, txID uuid.UUID, amount decimal.Decimal, pending *PendingTx) {
	ctx := context.Background()
	lg := s.log.With().Str("goal", goalID.String()).Str("tx", pending.Hash.Hex()).Logger()

	if _, err := s.bridge.Await(ctx, pending); err != nil {
		lg.Error().Err(err).Msg("deposit failed on chain")
		if mErr := s.txs.MarkFailed(ctx, txID, err.Error()); mErr != nil {
			lg.Error().Err(mErr).Msg("could not mark deposit failed")
		}
		return
	}

	if _, err := s.goals.ApplyDeposit(ctx, goalID, txID, amount); err != nil {
		lg.Warn().Err(err).Msg("deposit confirmed but patch failed, queueing for reconciliation")
		s.enqueueReconcile(ctx, &model.ReconcileEntry{
			GoalID:    goalID,
			TxID:      txID,
			Kind:      model.TxKindDeposit,
			Amount:    amount,
			LastError: err.Error(),
		})
		return
	}
	lg.Info().Str("amount", amount.String()).Msg("deposit reconciled")
}

// Withdraw evaluates the withdrawal policy against ledger-reported
// eligibility and, unless blocked, submits the chosen path. The off-chain
// balance is debited only after confirmation.
func (s *GoalService) Withdraw(ctx context.Context, goalID uuid.UUID, early bool, requested decimal.Decimal) (WithdrawalPlan, error) {
	mu := s.goalLock(goalID)
	mu.Lock()
	defer mu.Unlock()

	goal, err := s.readyGoal(ctx, goalID)
	if err != nil {
		return WithdrawalPlan{}, err
	}

	eligible, reason, err := s.bridge.CanWithdraw(ctx, *goal.OnChainID)
	if err != nil {
		return WithdrawalPlan{}, errors.Wrap(err, "query withdrawal eligibility")
	}

	plan, err := EvaluateWithdrawal(goal, eligible, reason, early, requested)
	if err != nil {
		return WithdrawalPlan{}, err
	}
	if plan.Kind == PlanBlocked {
		return plan, nil
	}

	op := Operation{Kind: model.TxKindWithdrawal, OnChainGoalID: *goal.OnChainID}
	if plan.Kind == PlanEarly {
		op.Kind = model.TxKindEarlyWithdrawal
		op.Amount = plan.Amount
	}

	lt := &model.LedgerTransaction{
		GoalID:        goal.ID,
		OnChainGoalID: goal.OnChainID,
		Kind:          op.Kind,
		Amount:        plan.Amount,
	}
	if err := s.txs.Create(ctx, lt); err != nil {
		return WithdrawalPlan{}, errors.Wrap(err, "record withdrawal transaction")
	}

	pending, err := s.bridge.Submit(ctx, op)
	if err != nil {
		if mErr := s.txs.MarkFailed(ctx, lt.ID, err.Error()); mErr != nil {
			s.log.Error().Err(mErr).Str("goal", goalID.String()).Msg("could not mark withdrawal failed")
		}
		return WithdrawalPlan{}, err
	}
	if err := s.txs.SetHash(ctx, lt.ID, pending.Hash.Hex()); err != nil {
		s.log.Warn().Err(err).Str("goal", goalID.String()).Msg("could not record tx hash")
	}

	s.spawn(func() { s.finalizeWithdrawal(goal.ID, lt.ID, plan.Amount, pending) })
	return plan, nil
}

func (s *GoalService) finalizeWithdrawal(goalID, txID uuid.UUID, amount decimal.Decimal, pending *PendingTx) {
	ctx := context.Background()
	lg := s.log.With().Str("goal", goalID.String()).Str("tx", pending.Hash.Hex()).Logger()

	if _, err := s.bridge.Await(ctx, pending); err != nil {
		lg.Error().Err(err).Msg("withdrawal failed on chain")
		if mErr := s.txs.MarkFailed(ctx, txID, err.Error()); mErr != nil {
			lg.Error().Err(mErr).Msg("could not mark withdrawal failed")
		}
		return
	}

	if _, err := s.goals.ApplyWithdrawal(ctx, goalID, txID, amount); err != nil {
		lg.Warn().Err(err).Msg("withdrawal confirmed but patch failed, queueing for reconciliation")
		s.enqueueReconcile(ctx, &model.ReconcileEntry{
			GoalID:    goalID,
			TxID:      txID,
			Kind:      model.TxKindWithdrawal,
			Amount:    amount,
			LastError: err.Error(),
		})
		return
	}
	lg.Info().Str("amount", amount.String()).Msg("withdrawal reconciled")
}

func (s *GoalService) ListGoals(ctx context.Context, ownerID string) ([]model.Goal, error) {
	return s.goals.ListActiveByOwner(ctx, ownerID)
}

func (s *GoalService) GetGoal(ctx context.Context, id uuid.UUID) (*model.Goal, error) {
	return s.goals.GetByID(ctx, id)
}

func (s *GoalService) ListTransactions(ctx context.Context, goalID uuid.UUID) ([]model.LedgerTransaction, error) {
	return s.txs.ListByGoal(ctx, goalID)
}

// readyGoal loads a goal that is active, confirmed, bound, and has no
// outstanding ledger operation.
func (s *GoalService) readyGoal(ctx context.Context, goalID uuid.UUID) (*model.Goal, error) {
	goal, err := s.goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if !goal.IsActive {
		return nil, ErrGoalNotActive
	}
	if goal.State != model.StateConfirmed || !goal.Bound() {
		return nil, ErrGoalNotBound
	}
	outstanding, err := s.txs.Outstanding(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if outstanding != nil {
		return nil, ErrOperationInFlight
	}
	return goal, nil
}

func (s *GoalService) failOperation(ctx context.Context, goalID, txID uuid.UUID, state model.ConfirmationState, reason string) {
	if err := s.txs.MarkFailed(ctx, txID, reason); err != nil {
		s.log.Error().Err(err).Str("goal", goalID.String()).Msg("could not mark transaction failed")
	}
	if err := s.goals.SetState(ctx, goalID, state); err != nil {
		s.log.Error().Err(err).Str("goal", goalID.String()).Msg("could not mark goal failed")
	}
}

func (s *GoalService) enqueueReconcile(ctx context.Context, entry *model.ReconcileEntry) {
	if err := s.queue.Enqueue(ctx, entry); err != nil {
		// Last line of defense gone: nothing left but the log.
		s.log.Error().Err(err).Str("goal", entry.GoalID.String()).Msg("could not enqueue reconciliation entry")
	}
}

func (s *GoalService) goalLock(id uuid.UUID) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *GoalService) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}
