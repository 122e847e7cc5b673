// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

//go:generate mockgen -source ledger.go -destination ledger_mocks.go -package ledger

import (
	"fmt"

	"github.com/0xsoniclabs/tracy"
	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrUnauthorized          = common.ConstError("unauthorized")
	ErrAlreadyInitialized    = common.ConstError("ledger already initialized")
	ErrNotInitialized        = common.ConstError("ledger not initialized")
	ErrInvalidBinding        = common.ConstError("price source does not quote this ledger against the paired asset")
	ErrSupplyUnderflow       = common.ConstError("supply underflow")
	ErrSupplyOverflow        = common.ConstError("supply overflow")
	ErrStaleEpoch            = common.ConstError("epoch not greater than last applied epoch")
	ErrInsufficientBalance   = token.ErrInsufficientBalance
	ErrInsufficientAllowance = token.ErrInsufficientAllowance
	ErrZeroAddress           = token.ErrZeroAddress
)

const (
	// Decimals is the number of decimals of the visible balance unit.
	Decimals = 9
	// MaxTransferDust bounds, in base units, how far a single transfer can
	// shift the combined balance of its two parties.
	MaxTransferDust = 1
)

var (
	// Precision is the fixed-point denominator of the scaling factor.
	Precision = common.Pow10(27)
	// InitialScalingFactor makes one base unit worth 10^9 shares.
	InitialScalingFactor = common.Pow10(18)

	// ABI lists the methods the ledger accepts as payloads.
	ABI = common.MustParseABI(`[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"rebase","inputs":[{"name":"epoch","type":"uint256"},{"name":"delta","type":"uint256"},{"name":"positive","type":"bool"}],"outputs":[{"name":"","type":"uint256"}]}
]`)
)

// PriceSource is the oracle a ledger binds to during initialization.
type PriceSource interface {
	Address() common.Address
	// Tokens returns the two assets of the observed pool.
	Tokens() (common.Address, common.Address)
	Primed() bool
	// Prime captures the first observation. The context must be addressed to
	// the source.
	Prime(ctx *state.Context) error
	Consult(token common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// Config holds the parameters fixed at deployment.
type Config struct {
	Name          string
	Symbol        string
	InitialSupply *uint256.Int
}

// Ledger is an elastic-supply ledger. Accounts hold shares; the visible
// balance of an account is shares * scalingFactor / Precision. A rebase
// rewrites the scaling factor only, so every balance changes in O(1).
type Ledger struct {
	addr   common.Address
	name   string
	symbol string

	creator   common.Address
	authority common.Address
	stage     Stage
	source    PriceSource
	pending   common.Address // source of a restored ledger awaiting Reattach
	paired    common.Address

	shares        map[common.Address]*uint256.Int
	totalShares   *uint256.Int
	scalingFactor *uint256.Int
	allowances    map[common.Address]map[common.Address]*uint256.Int
	lastEpoch     uint64
}

// New creates a ledger at addr whose initial supply is held by creator.
func New(addr common.Address, config Config, creator common.Address) (*Ledger, error) {
	if creator == common.ZeroAddress {
		return nil, ErrZeroAddress
	}
	supply := common.OrZero(config.InitialSupply)
	totalShares, err := common.MulDiv(supply, Precision, InitialScalingFactor)
	if err != nil {
		return nil, fmt.Errorf("initial supply %v: %w", supply, ErrSupplyOverflow)
	}
	return &Ledger{
		addr:          addr,
		name:          config.Name,
		symbol:        config.Symbol,
		creator:       creator,
		shares:        map[common.Address]*uint256.Int{creator: common.Clone(totalShares)},
		totalShares:   totalShares,
		scalingFactor: common.Clone(InitialScalingFactor),
		allowances:    map[common.Address]map[common.Address]*uint256.Int{},
	}, nil
}

func (l *Ledger) Address() common.Address         { return l.addr }
func (l *Ledger) Name() string                    { return l.name }
func (l *Ledger) Symbol() string                  { return l.symbol }
func (l *Ledger) Decimals() uint8                 { return Decimals }
func (l *Ledger) Creator() common.Address         { return l.creator }
func (l *Ledger) RebaseAuthority() common.Address { return l.authority }
func (l *Ledger) Stage() Stage                    { return l.stage }
func (l *Ledger) LastEpoch() uint64               { return l.lastEpoch }

// Binding returns the bound price source and paired asset, or nil before
// initialization.
func (l *Ledger) Binding() (PriceSource, common.Address) {
	return l.source, l.paired
}

func (l *Ledger) TotalShares() *uint256.Int {
	return common.Clone(l.totalShares)
}

func (l *Ledger) ScalingFactor() *uint256.Int {
	return common.Clone(l.scalingFactor)
}

// TotalSupply is derived from the total shares and the scaling factor.
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.toBalance(l.totalShares)
}

func (l *Ledger) SharesOf(account common.Address) *uint256.Int {
	return common.Clone(common.OrZero(l.shares[account]))
}

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	return l.toBalance(common.OrZero(l.shares[account]))
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	return common.Clone(common.OrZero(l.allowances[owner][spender]))
}

// Consult quotes amountIn of token through the bound price source.
func (l *Ledger) Consult(token common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if l.source == nil {
		return nil, ErrNotInitialized
	}
	return l.source.Consult(token, amountIn)
}

func (l *Ledger) Transfer(ctx *state.Context, to common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	return l.move(ctx, ctx.Caller(), to, amount)
}

// TransferFrom moves amount from owner to the recipient on behalf of the
// caller. The owner itself needs no allowance; an unlimited allowance is
// never decremented.
func (l *Ledger) TransferFrom(ctx *state.Context, owner, to common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	spender := ctx.Caller()
	if spender != owner {
		allowed := common.OrZero(l.allowances[owner][spender])
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: %v may spend %v of %v, wanted %v", ErrInsufficientAllowance, spender, allowed, owner, amount)
		}
		if !allowed.Eq(common.MaxAmount) {
			l.setAllowance(ctx, owner, spender, new(uint256.Int).Sub(allowed, amount))
		}
	}
	return l.move(ctx, owner, to, amount)
}

// Approve overwrites the allowance of spender over the caller's balance.
// Allowances are absolute amounts and are not rescaled by rebases.
func (l *Ledger) Approve(ctx *state.Context, spender common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	if spender == common.ZeroAddress {
		return ErrZeroAddress
	}
	owner := ctx.Caller()
	l.setAllowance(ctx, owner, spender, amount)
	ctx.Emit(token.Approval{Owner: owner, Spender: spender, Amount: common.Clone(amount)})
	return nil
}

// Initialize binds the ledger to its price source and paired asset. It may
// only be called once, by the creator. The source is primed if it has no
// observation yet.
func (l *Ledger) Initialize(ctx *state.Context, source PriceSource, paired common.Address) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	if l.stage != StageUninitialized {
		return ErrAlreadyInitialized
	}
	if err := l.checkCreator(ctx); err != nil {
		return err
	}
	if source == nil || paired == common.ZeroAddress || paired == l.addr {
		return ErrInvalidBinding
	}
	token0, token1 := source.Tokens()
	if !(token0 == l.addr && token1 == paired) && !(token0 == paired && token1 == l.addr) {
		return fmt.Errorf("%w: source quotes %v/%v", ErrInvalidBinding, token0, token1)
	}

	l.source, l.paired, l.stage = source, paired, StageInitialized
	ctx.Record(func() {
		l.source, l.paired, l.stage = nil, common.ZeroAddress, StageUninitialized
	})
	if !source.Primed() {
		if err := ctx.Call(source.Address(), source.Prime); err != nil {
			return fmt.Errorf("failed to prime price source: %w", err)
		}
	}
	ctx.Emit(Initialized{Source: source.Address(), Paired: paired})
	return nil
}

// SetRebaseAuthority grants the exclusive right to rebase to authority.
func (l *Ledger) SetRebaseAuthority(ctx *state.Context, authority common.Address) error {
	if err := l.checkCreator(ctx); err != nil {
		return err
	}
	if l.stage == StageUninitialized {
		return ErrNotInitialized
	}
	if authority == common.ZeroAddress {
		return ErrZeroAddress
	}
	oldAuthority, oldStage := l.authority, l.stage
	l.authority, l.stage = authority, StageAuthorityBound
	ctx.Record(func() { l.authority, l.stage = oldAuthority, oldStage })
	ctx.Emit(RebaseAuthorityChanged{Authority: authority})
	return nil
}

// RelinquishCreator drops the creator role for good.
func (l *Ledger) RelinquishCreator(ctx *state.Context) error {
	if err := l.checkCreator(ctx); err != nil {
		return err
	}
	old := l.creator
	l.creator = common.ZeroAddress
	ctx.Record(func() { l.creator = old })
	ctx.Emit(CreatorRelinquished{Creator: old})
	return nil
}

// Rebase changes the total supply by delta, upwards if positive, by
// rewriting the scaling factor. A zero delta leaves the scaling factor
// untouched. Only the rebase authority may call it, at most once per
// execution, with strictly increasing epochs. It returns the new total
// supply.
func (l *Ledger) Rebase(ctx *state.Context, epoch uint64, delta *uint256.Int, positive bool) (*uint256.Int, error) {
	zone := tracy.ZoneBegin("ledger::rebase")
	defer zone.End()

	if err := ctx.Expect(l.addr); err != nil {
		return nil, err
	}
	if l.authority == common.ZeroAddress || ctx.Caller() != l.authority {
		return nil, fmt.Errorf("%w: %v is not the rebase authority", ErrUnauthorized, ctx.Caller())
	}
	if err := ctx.Latch("ledger.rebase"); err != nil {
		return nil, err
	}
	if epoch <= l.lastEpoch {
		return nil, fmt.Errorf("%w: got %d, last %d", ErrStaleEpoch, epoch, l.lastEpoch)
	}

	if !delta.IsZero() {
		supply := l.TotalSupply()
		var newSupply uint256.Int
		if positive {
			if _, overflow := newSupply.AddOverflow(supply, delta); overflow {
				return nil, ErrSupplyOverflow
			}
		} else {
			if !delta.Lt(supply) {
				return nil, fmt.Errorf("%w: cannot remove %v from %v", ErrSupplyUnderflow, delta, supply)
			}
			newSupply.Sub(supply, delta)
		}
		factor, err := common.MulDiv(&newSupply, Precision, l.totalShares)
		if err != nil {
			return nil, fmt.Errorf("%w: scaling factor for supply %v", ErrSupplyOverflow, &newSupply)
		}
		if factor.IsZero() {
			return nil, fmt.Errorf("%w: supply %v is below share resolution", ErrSupplyUnderflow, &newSupply)
		}
		old := l.scalingFactor
		l.scalingFactor = factor
		ctx.Record(func() { l.scalingFactor = old })
	}

	oldEpoch := l.lastEpoch
	l.lastEpoch = epoch
	ctx.Record(func() { l.lastEpoch = oldEpoch })

	supply := l.TotalSupply()
	ctx.Emit(SupplyChanged{Epoch: epoch, TotalSupply: supply, ScalingFactor: l.ScalingFactor()})
	log.Debug("Ledger rebased", "epoch", epoch, "delta", delta, "positive", positive, "supply", supply)
	return supply, nil
}

// Invoke dispatches payloads for transfer, transferFrom, approve and
// rebase.
func (l *Ledger) Invoke(ctx *state.Context, payload []byte) error {
	call, err := ABI.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w on %s", err, l.symbol)
	}
	switch call.Method {
	case "transfer":
		to, amount, err := token.AddressAndAmount(call, 0)
		if err != nil {
			return err
		}
		return l.Transfer(ctx, to, amount)
	case "approve":
		spender, amount, err := token.AddressAndAmount(call, 0)
		if err != nil {
			return err
		}
		return l.Approve(ctx, spender, amount)
	case "transferFrom":
		owner, err := call.Address(0)
		if err != nil {
			return err
		}
		to, amount, err := token.AddressAndAmount(call, 1)
		if err != nil {
			return err
		}
		return l.TransferFrom(ctx, owner, to, amount)
	case "rebase":
		epoch, err := call.Uint64(0)
		if err != nil {
			return err
		}
		delta, err := call.Uint256(1)
		if err != nil {
			return err
		}
		positive, err := call.Bool(2)
		if err != nil {
			return err
		}
		_, err = l.Rebase(ctx, epoch, delta, positive)
		return err
	}
	return fmt.Errorf("%w: %s on %s", state.ErrUnknownSelector, call.Method, l.symbol)
}

func (l *Ledger) checkCreator(ctx *state.Context) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	if l.creator == common.ZeroAddress || ctx.Caller() != l.creator {
		return fmt.Errorf("%w: %v is not the creator", ErrUnauthorized, ctx.Caller())
	}
	return nil
}

func (l *Ledger) toBalance(shares *uint256.Int) *uint256.Int {
	res, err := common.MulDiv(shares, l.scalingFactor, Precision)
	if err != nil {
		// Unreachable: the scaling factor is bounded by the share count.
		return common.Clone(common.MaxAmount)
	}
	return res
}

// move transfers amount using the fewest shares that take at least amount
// from the sender and credit at least amount to the recipient. Both balances
// change by exactly amount unless both sit on unit boundaries that no share
// count satisfies at once; the pair's sum is then off by MaxTransferDust.
func (l *Ledger) move(ctx *state.Context, from, to common.Address, amount *uint256.Int) error {
	if to == common.ZeroAddress {
		return ErrZeroAddress
	}
	balance := l.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %v holds %v, wanted %v", ErrInsufficientBalance, from, balance, amount)
	}
	fromShares := common.OrZero(l.shares[from])
	toShares := common.OrZero(l.shares[to])

	// The sender must drop below the share count worth remaining+1.
	remaining := new(uint256.Int).Sub(balance, amount)
	keep, err := l.minShares(remaining.AddUint64(remaining, 1))
	if err != nil {
		return err
	}
	moved := new(uint256.Int)
	if !fromShares.Lt(keep) {
		moved.Sub(fromShares, keep).AddUint64(moved, 1)
	}
	// The recipient must reach the share count worth its balance+amount.
	target, err := l.minShares(new(uint256.Int).Add(l.toBalance(toShares), amount))
	if err != nil {
		return err
	}
	if target.Gt(toShares) {
		if credit := new(uint256.Int).Sub(target, toShares); credit.Gt(moved) {
			moved = credit
		}
	}
	if fromShares.Lt(moved) {
		moved = fromShares
	}

	l.setShares(ctx, from, new(uint256.Int).Sub(fromShares, moved))
	l.setShares(ctx, to, new(uint256.Int).Add(common.OrZero(l.shares[to]), moved))
	ctx.Emit(token.Transfer{From: from, To: to, Amount: common.Clone(amount)})
	return nil
}

// minShares is the smallest share count whose balance reaches amount.
func (l *Ledger) minShares(amount *uint256.Int) (*uint256.Int, error) {
	return common.MulDivUp(amount, Precision, l.scalingFactor)
}

func (l *Ledger) setShares(ctx *state.Context, account common.Address, value *uint256.Int) {
	old, had := l.shares[account]
	l.shares[account] = value
	ctx.Record(func() {
		if had {
			l.shares[account] = old
		} else {
			delete(l.shares, account)
		}
	})
}

func (l *Ledger) setAllowance(ctx *state.Context, owner, spender common.Address, value *uint256.Int) {
	spenders, found := l.allowances[owner]
	if !found {
		spenders = map[common.Address]*uint256.Int{}
		l.allowances[owner] = spenders
	}
	old, had := spenders[spender]
	spenders[spender] = common.Clone(value)
	ctx.Record(func() {
		if had {
			spenders[spender] = old
		} else {
			delete(spenders, spender)
		}
	})
}
