package service

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/goal_vault/model"
)

// Vault contract surface consumed by the bridge.
const vaultABIJSON = `[
	{"type":"function","name":"createGoal","stateMutability":"nonpayable","inputs":[{"name":"goalType","type":"uint8"},{"name":"targetValue","type":"uint256"},{"name":"currency","type":"uint8"},{"name":"unlockTimestamp","type":"uint256"},{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"createGoalLegacy","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"unlockTimestamp","type":"uint256"},{"name":"description","type":"string"}],"outputs":[]},
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[{"name":"asset","type":"address"},{"name":"goalId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"goalId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawEarly","stateMutability":"nonpayable","inputs":[{"name":"goalId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"canWithdraw","stateMutability":"view","inputs":[{"name":"goalId","type":"uint256"}],"outputs":[{"name":"eligible","type":"bool"},{"name":"reason","type":"string"}]},
	{"type":"function","name":"isGoalReached","stateMutability":"view","inputs":[{"name":"goalId","type":"uint256"}],"outputs":[{"name":"reached","type":"bool"}]},
	{"type":"function","name":"getGoalDetails","stateMutability":"view","inputs":[{"name":"goalId","type":"uint256"}],"outputs":[{"name":"owner","type":"address"},{"name":"goalType","type":"uint8"},{"name":"targetValue","type":"uint256"},{"name":"currency","type":"uint8"},{"name":"unlockTimestamp","type":"uint256"},{"name":"balance","type":"uint256"}]},
	{"type":"function","name":"getUserGoals","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"goalIds","type":"uint256[]"}]}
]`

// goalCreatedDecoder matches one versioned shape of the goal-creation event.
// The goal id sits in the second indexed topic in every known shape; adding a
// future shape means appending to goalCreatedDecoders.
type goalCreatedDecoder struct {
	signature string
	topic0    common.Hash
}

func (d goalCreatedDecoder) decode(lg *types.Log) (uint64, bool) {
	if len(lg.Topics) < 3 || lg.Topics[0] != d.topic0 {
		return 0, false
	}
	return new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64(), true
}

// Tried in order: current shape first, then the legacy four-field shape kept
// for receipts from the old contract.
var goalCreatedDecoders = []goalCreatedDecoder{
	newGoalCreatedDecoder("GoalCreated(address,uint256,uint8,uint256,uint8)"),
	newGoalCreatedDecoder("GoalCreated(address,uint256,uint256,uint256)"),
}

func newGoalCreatedDecoder(sig string) goalCreatedDecoder {
	return goalCreatedDecoder{signature: sig, topic0: crypto.Keccak256Hash([]byte(sig))}
}

// Operation describes one ledger submission. Kind decides which fields are
// read.
type Operation struct {
	Kind model.TxKind

	// Goal creation.
	GoalType        model.GoalType
	TargetValue     decimal.Decimal
	Currency        model.Currency
	UnlockTimestamp *time.Time
	Description     string
	Legacy          bool // use createGoalLegacy, which predates goal types

	// Deposits and withdrawals.
	OnChainGoalID uint64
	AssetAddress  common.Address
	Amount        decimal.Decimal // deposit value / early-withdrawal amount
}

// PendingTx is the handle for a submitted operation. Once broadcast there is
// no cancelling it; the only way out is Confirmed or Failed.
type PendingTx struct {
	Hash        common.Hash
	Kind        model.TxKind
	SubmittedAt time.Time
}

// GoalDetails mirrors the contract's read-only goal view.
type GoalDetails struct {
	Owner           common.Address
	GoalType        model.GoalType
	TargetValue     decimal.Decimal
	Currency        model.Currency
	UnlockTimestamp time.Time
	Balance         decimal.Decimal
}

// ethClient is the slice of ethclient.Client the bridge uses.
type ethClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const submitGasLimit = uint64(300_000)

// LedgerBridge submits vault operations and tracks them to a receipt. The
// receipt wait is the sole suspension point for on-chain work and carries no
// timeout of its own; confirmation may legitimately take unbounded time.
type LedgerBridge struct {
	client       ethClient
	contract     common.Address
	signer       *Signer
	vaultABI     abi.ABI
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewLedgerBridge(client ethClient, contract common.Address, signer *Signer, log zerolog.Logger) (*LedgerBridge, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse vault abi")
	}
	return &LedgerBridge{
		client:       client,
		contract:     contract,
		signer:       signer,
		vaultABI:     parsed,
		pollInterval: 3 * time.Second,
		log:          log.With().Str("component", "ledger_bridge").Logger(),
	}, nil
}

// Submit signs and broadcasts the operation, returning immediately with a
// handle. A wallet-side or node-side rejection surfaces as
// LedgerRejectedError and is never retried here.
func (b *LedgerBridge) Submit(ctx context.Context, op Operation) (*PendingTx, error) {
	data, value, err := b.encode(op)
	if err != nil {
		return nil, err
	}

	from := b.signer.Address()
	nonce, err := b.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "fetch nonce")
	}
	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas price")
	}

	tx := types.NewTransaction(nonce, b.contract, value, submitGasLimit, gasPrice, data)
	signed, err := b.signer.SignTx(tx)
	if err != nil {
		return nil, &LedgerRejectedError{Stage: "signing", Err: err}
	}
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return nil, &LedgerRejectedError{Stage: "broadcast", Err: err}
	}

	b.log.Info().
		Str("kind", string(op.Kind)).
		Str("tx", signed.Hash().Hex()).
		Msg("operation submitted")

	return &PendingTx{Hash: signed.Hash(), Kind: op.Kind, SubmittedAt: time.Now()}, nil
}

func (b *LedgerBridge) encode(op Operation) (data []byte, value *big.Int, err error) {
	value = big.NewInt(0)
	switch op.Kind {
	case model.TxKindGoalCreation:
		unlock := big.NewInt(0)
		if op.UnlockTimestamp != nil {
			unlock = big.NewInt(op.UnlockTimestamp.Unix())
		}
		if op.Legacy {
			data, err = b.vaultABI.Pack("createGoalLegacy", ethToWei(op.TargetValue), unlock, op.Description)
			return data, value, err
		}
		goalType, terr := op.GoalType.ChainValue()
		if terr != nil {
			return nil, nil, terr
		}
		currency, cerr := op.Currency.ChainValue()
		if cerr != nil {
			return nil, nil, cerr
		}
		data, err = b.vaultABI.Pack("createGoal", goalType, targetToChain(op.GoalType, op.TargetValue), currency, unlock, op.Description)
	case model.TxKindDeposit:
		value = ethToWei(op.Amount)
		data, err = b.vaultABI.Pack("deposit", op.AssetAddress, new(big.Int).SetUint64(op.OnChainGoalID))
	case model.TxKindWithdrawal:
		data, err = b.vaultABI.Pack("withdraw", new(big.Int).SetUint64(op.OnChainGoalID))
	case model.TxKindEarlyWithdrawal:
		data, err = b.vaultABI.Pack("withdrawEarly", new(big.Int).SetUint64(op.OnChainGoalID), ethToWei(op.Amount))
	default:
		return nil, nil, errors.Errorf("unknown operation kind %q", op.Kind)
	}
	return data, value, err
}

// Await polls for the receipt until ctx is done. A mined-but-reverted
// transaction returns LedgerRejectedError; transient RPC errors are logged
// and retried since confirmation has no deadline.
func (b *LedgerBridge) Await(ctx context.Context, pending *PendingTx) (*types.Receipt, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.client.TransactionReceipt(ctx, pending.Hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &LedgerRejectedError{Stage: "execution", Err: errors.New("transaction reverted")}
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			// not mined yet
		default:
			b.log.Warn().Err(err).Str("tx", pending.Hash.Hex()).Msg("receipt poll failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExtractGoalID scans a creation receipt for a recognized goal-creation
// event. A mined receipt with no recognizable shape is an anomalous state,
// possibly escrowed funds with no usable record, so it returns
// ErrIdentifierExtraction for the caller to surface, never a silent zero.
func (b *LedgerBridge) ExtractGoalID(receipt *types.Receipt) (uint64, error) {
	for _, dec := range goalCreatedDecoders {
		for _, lg := range receipt.Logs {
			if id, ok := dec.decode(lg); ok {
				return id, nil
			}
		}
	}
	return 0, ErrIdentifierExtraction
}

// CanWithdraw asks the ledger whether the goal is withdrawable. This is a
// ledger query, not a local computation: unlock conditions for price and
// portfolio goals depend on ledger-side price-feed state this core does not
// replicate.
func (b *LedgerBridge) CanWithdraw(ctx context.Context, onChainID uint64) (bool, string, error) {
	out, err := b.call(ctx, "canWithdraw", new(big.Int).SetUint64(onChainID))
	if err != nil {
		return false, "", err
	}
	eligible, ok := out[0].(bool)
	if !ok {
		return false, "", errors.New("unexpected canWithdraw eligibility type")
	}
	reason, _ := out[1].(string)
	return eligible, reason, nil
}

func (b *LedgerBridge) IsGoalReached(ctx context.Context, onChainID uint64) (bool, error) {
	out, err := b.call(ctx, "isGoalReached", new(big.Int).SetUint64(onChainID))
	if err != nil {
		return false, err
	}
	reached, ok := out[0].(bool)
	if !ok {
		return false, errors.New("unexpected isGoalReached result type")
	}
	return reached, nil
}

func (b *LedgerBridge) GetGoalDetails(ctx context.Context, onChainID uint64) (*GoalDetails, error) {
	out, err := b.call(ctx, "getGoalDetails", new(big.Int).SetUint64(onChainID))
	if err != nil {
		return nil, err
	}
	if len(out) < 6 {
		return nil, errors.New("short getGoalDetails result")
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails owner type")
	}
	rawType, ok := out[1].(uint8)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails goal type encoding")
	}
	target, ok := out[2].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails target type")
	}
	rawCurrency, ok := out[3].(uint8)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails currency encoding")
	}
	unlock, ok := out[4].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails unlock type")
	}
	balance, ok := out[5].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected getGoalDetails balance type")
	}

	goalType, err := model.GoalTypeFromChain(rawType)
	if err != nil {
		return nil, err
	}
	currency, err := model.CurrencyFromChain(rawCurrency)
	if err != nil {
		return nil, err
	}
	return &GoalDetails{
		Owner:           owner,
		GoalType:        goalType,
		TargetValue:     chainToTarget(goalType, target),
		Currency:        currency,
		UnlockTimestamp: time.Unix(unlock.Int64(), 0),
		Balance:         weiToEth(balance),
	}, nil
}

func (b *LedgerBridge) GetUserGoals(ctx context.Context, owner common.Address) ([]uint64, error) {
	out, err := b.call(ctx, "getUserGoals", owner)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, errors.New("unexpected getUserGoals result type")
	}
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, v.Uint64())
	}
	return ids, nil
}

func (b *LedgerBridge) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := b.vaultABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	raw, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &b.contract, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	out, err := b.vaultABI.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}

// ethToWei converts asset units to base units.
func ethToWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(decimal.New(1, 18)).BigInt()
}

func weiToEth(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

// targetToChain encodes a goal target: amount targets in base units, price
// and portfolio targets in whole quote-currency units.
func targetToChain(t model.GoalType, target decimal.Decimal) *big.Int {
	if t == model.GoalTypeAmount {
		return ethToWei(target)
	}
	return target.Round(0).BigInt()
}

func chainToTarget(t model.GoalType, v *big.Int) decimal.Decimal {
	if t == model.GoalTypeAmount {
		return weiToEth(v)
	}
	return decimal.NewFromBigInt(v, 0)
}
