// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package orchestrator

//go:generate mockgen -source orchestrator.go -destination orchestrator_mocks.go -package orchestrator

import (
	"fmt"
	"slices"
	"time"

	"github.com/0xsoniclabs/tracy"
	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrTooSoon           = common.ConstError("rebase too soon")
	ErrUnauthorized      = common.ConstError("caller is not the batch administrator")
	ErrBatchedCallFailed = common.ConstError("batched call failed")
	ErrIndexOutOfRange   = common.ConstError("transaction index out of range")
	ErrInvalidInterval   = common.ConstError("minimum rebase interval must be at least one second")
)

// DefaultMinRebaseInterval is the minimum time between two rebases.
const DefaultMinRebaseInterval = 24 * time.Hour

// ABI lists the methods the orchestrator accepts as payloads.
var ABI = common.MustParseABI(`[
	{"type":"function","name":"rebase","inputs":[],"outputs":[]}
]`)

// Ledger is the elastic ledger whose supply is adjusted.
type Ledger interface {
	Address() common.Address
	TotalSupply() *uint256.Int
	// Rebase must be called with a context addressed to the ledger.
	Rebase(ctx *state.Context, epoch uint64, delta *uint256.Int, positive bool) (*uint256.Int, error)
}

// PriceOracle provides the average price driving the supply policy.
type PriceOracle interface {
	Address() common.Address
	Due(now uint64) bool
	// Update must be called with a context addressed to the oracle.
	Update(ctx *state.Context) error
	Consult(token common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// Config holds the orchestrator's parameters.
type Config struct {
	MinRebaseInterval time.Duration
	Policy            Policy
}

func (c Config) Validate() error {
	if c.MinRebaseInterval < time.Second {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, c.MinRebaseInterval)
	}
	return c.Policy.Validate()
}

// Transaction is a call executed after every successful rebase.
type Transaction struct {
	Target  common.Address
	Payload []byte
}

// BatchedCallError reports the failure of a registered transaction.
type BatchedCallError struct {
	Index  int
	Target common.Address
	Err    error
}

func (e *BatchedCallError) Error() string {
	return fmt.Sprintf("%v: transaction %d to %v: %v", ErrBatchedCallFailed, e.Index, e.Target, e.Err)
}

func (e *BatchedCallError) Unwrap() []error {
	return []error{ErrBatchedCallFailed, e.Err}
}

// Outcome summarizes a completed rebase.
type Outcome struct {
	Epoch         uint64
	Price         *uint256.Int
	Delta         *uint256.Int
	Positive      bool
	TotalSupply   *uint256.Int
	OracleUpdated bool
}

// RebaseCompleted is emitted at the end of every successful rebase.
type RebaseCompleted struct {
	Epoch       uint64
	Price       *uint256.Int
	Delta       *uint256.Int
	Positive    bool
	TotalSupply *uint256.Int
	Timestamp   uint64
}

func (RebaseCompleted) EventName() string { return "RebaseCompleted" }

type TransactionAdded struct {
	Index int
	Transaction
}

func (TransactionAdded) EventName() string { return "TransactionAdded" }

type TransactionRemoved struct {
	Index int
	Transaction
}

func (TransactionRemoved) EventName() string { return "TransactionRemoved" }

// Orchestrator drives the supply of a ledger. Each rebase reads the oracle,
// applies the policy to the ledger, advances the epoch and runs the
// registered transactions, all within the caller's execution, so a failure
// at any step leaves no trace.
type Orchestrator struct {
	addr   common.Address
	admin  common.Address
	ledger Ledger
	oracle PriceOracle
	config Config

	epoch      uint64
	lastRebase uint64
	batch      []Transaction
}

func New(addr, admin common.Address, ledger Ledger, oracle PriceOracle, config Config) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		addr:   addr,
		admin:  admin,
		ledger: ledger,
		oracle: oracle,
		config: config,
	}, nil
}

func (o *Orchestrator) Address() common.Address { return o.addr }
func (o *Orchestrator) Admin() common.Address   { return o.admin }
func (o *Orchestrator) Config() Config          { return o.config }
func (o *Orchestrator) Epoch() uint64           { return o.epoch }
func (o *Orchestrator) LastRebase() uint64      { return o.lastRebase }
func (o *Orchestrator) TransactionCount() int   { return len(o.batch) }

// NextRebase returns the earliest time the next rebase is allowed.
func (o *Orchestrator) NextRebase() uint64 {
	if o.epoch == 0 {
		return 0
	}
	return o.lastRebase + uint64(o.config.MinRebaseInterval/time.Second)
}

// Transactions returns a copy of the registered transactions.
func (o *Orchestrator) Transactions() []Transaction {
	var res []Transaction
	for _, tx := range o.batch {
		res = append(res, Transaction{Target: tx.Target, Payload: slices.Clone(tx.Payload)})
	}
	return res
}

// AddTransaction registers a call to run after every rebase.
func (o *Orchestrator) AddTransaction(ctx *state.Context, target common.Address, payload []byte) error {
	if err := o.checkAdmin(ctx); err != nil {
		return err
	}
	tx := Transaction{Target: target, Payload: slices.Clone(payload)}
	old := o.batch
	o.batch = append(slices.Clip(o.batch), tx)
	ctx.Record(func() { o.batch = old })
	ctx.Emit(TransactionAdded{Index: len(o.batch) - 1, Transaction: tx})
	return nil
}

// RemoveTransaction unregisters the transaction at index, shifting later
// ones down.
func (o *Orchestrator) RemoveTransaction(ctx *state.Context, index int) error {
	if err := o.checkAdmin(ctx); err != nil {
		return err
	}
	if index < 0 || index >= len(o.batch) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(o.batch))
	}
	old := o.batch
	o.batch = slices.Delete(slices.Clone(o.batch), index, index+1)
	ctx.Record(func() { o.batch = old })
	ctx.Emit(TransactionRemoved{Index: index, Transaction: old[index]})
	return nil
}

// Rebase runs one epoch transition.
func (o *Orchestrator) Rebase(ctx *state.Context) (*Outcome, error) {
	zone := tracy.ZoneBegin("orchestrator::rebase")
	defer zone.End()

	if err := ctx.Expect(o.addr); err != nil {
		return nil, err
	}
	exit, err := ctx.Enter("orchestrator.rebase")
	if err != nil {
		return nil, err
	}
	defer exit()

	now := ctx.Time()
	if next := o.NextRebase(); now < next {
		return nil, fmt.Errorf("%w: next rebase at %d, now %d", ErrTooSoon, next, now)
	}

	res := &Outcome{Epoch: o.epoch + 1}
	if o.oracle.Due(now) {
		if err := ctx.Call(o.oracle.Address(), o.oracle.Update); err != nil {
			return nil, fmt.Errorf("failed to update oracle: %w", err)
		}
		res.OracleUpdated = true
	}

	policy := o.config.Policy
	res.Price, err = o.oracle.Consult(policy.QuoteAsset, policy.ReferenceAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to consult oracle: %w", err)
	}
	res.Delta, res.Positive, err = policy.SupplyDelta(o.ledger.TotalSupply(), res.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to compute supply delta: %w", err)
	}

	err = ctx.Call(o.ledger.Address(), func(sub *state.Context) error {
		var err error
		res.TotalSupply, err = o.ledger.Rebase(sub, res.Epoch, res.Delta, res.Positive)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebase ledger: %w", err)
	}

	oldEpoch, oldLastRebase := o.epoch, o.lastRebase
	o.epoch, o.lastRebase = res.Epoch, now
	ctx.Record(func() { o.epoch, o.lastRebase = oldEpoch, oldLastRebase })

	for i, tx := range o.Transactions() {
		if err := ctx.Invoke(tx.Target, tx.Payload); err != nil {
			return nil, &BatchedCallError{Index: i, Target: tx.Target, Err: err}
		}
	}

	ctx.Emit(RebaseCompleted{
		Epoch:       res.Epoch,
		Price:       res.Price,
		Delta:       res.Delta,
		Positive:    res.Positive,
		TotalSupply: res.TotalSupply,
		Timestamp:   now,
	})
	log.Info("Rebase completed", "epoch", res.Epoch, "price", res.Price, "delta", res.Delta,
		"positive", res.Positive, "supply", res.TotalSupply, "transactions", len(o.batch))
	return res, nil
}

// Invoke dispatches rebase() payloads.
func (o *Orchestrator) Invoke(ctx *state.Context, payload []byte) error {
	if _, err := ABI.Decode(payload); err != nil {
		return fmt.Errorf("%w on orchestrator", err)
	}
	_, err := o.Rebase(ctx)
	return err
}

func (o *Orchestrator) checkAdmin(ctx *state.Context) error {
	if err := ctx.Expect(o.addr); err != nil {
		return err
	}
	if ctx.Caller() != o.admin {
		return fmt.Errorf("%w: %v", ErrUnauthorized, ctx.Caller())
	}
	return nil
}
