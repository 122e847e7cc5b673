// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package token

import (
	"fmt"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/holiman/uint256"
)

const (
	ErrInsufficientBalance   = common.ConstError("insufficient balance")
	ErrInsufficientAllowance = common.ConstError("insufficient allowance")
	ErrZeroAddress           = common.ConstError("zero address")
)

// ABI lists the methods a fixed-supply asset accepts as payloads.
var ABI = common.MustParseABI(`[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`)

// Asset is the balance surface shared by every ledger in the system. Pools,
// locks and helpers hold assets through it.
type Asset interface {
	Address() common.Address
	BalanceOf(account common.Address) *uint256.Int
	// Transfer moves amount from ctx.Caller() to the recipient. The context
	// must be addressed to the asset.
	Transfer(ctx *state.Context, to common.Address, amount *uint256.Int) error
}

// Transfer is emitted on every balance movement, including minting.
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (Transfer) EventName() string { return "Transfer" }

// Approval is emitted whenever an allowance is overwritten.
type Approval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (Approval) EventName() string { return "Approval" }

// SendFrom moves amount of asset from the frame's contract to the recipient
// by opening a nested frame addressed to the asset.
func SendFrom(ctx *state.Context, asset Asset, to common.Address, amount *uint256.Int) error {
	return ctx.Call(asset.Address(), func(sub *state.Context) error {
		return asset.Transfer(sub, to, amount)
	})
}

// Fixed is a conventional ledger with a supply fixed at construction.
type Fixed struct {
	addr        common.Address
	name        string
	symbol      string
	decimals    uint8
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
}

// NewFixed creates a ledger whose whole supply is held by holder.
func NewFixed(addr common.Address, name, symbol string, decimals uint8, supply *uint256.Int, holder common.Address) *Fixed {
	return &Fixed{
		addr:        addr,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: common.Clone(supply),
		balances:    map[common.Address]*uint256.Int{holder: common.Clone(supply)},
		allowances:  map[common.Address]map[common.Address]*uint256.Int{},
	}
}

func (f *Fixed) Address() common.Address { return f.addr }
func (f *Fixed) Name() string            { return f.name }
func (f *Fixed) Symbol() string          { return f.symbol }
func (f *Fixed) Decimals() uint8         { return f.decimals }

func (f *Fixed) TotalSupply() *uint256.Int {
	return common.Clone(f.totalSupply)
}

func (f *Fixed) BalanceOf(account common.Address) *uint256.Int {
	return common.Clone(common.OrZero(f.balances[account]))
}

func (f *Fixed) Allowance(owner, spender common.Address) *uint256.Int {
	return common.Clone(common.OrZero(f.allowances[owner][spender]))
}

func (f *Fixed) Transfer(ctx *state.Context, to common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(f.addr); err != nil {
		return err
	}
	return f.move(ctx, ctx.Caller(), to, amount)
}

func (f *Fixed) TransferFrom(ctx *state.Context, from, to common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(f.addr); err != nil {
		return err
	}
	spender := ctx.Caller()
	if spender != from {
		allowed := common.OrZero(f.allowances[from][spender])
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: %v may spend %v of %v, wanted %v", ErrInsufficientAllowance, spender, allowed, from, amount)
		}
		if !allowed.Eq(common.MaxAmount) {
			f.setAllowance(ctx, from, spender, new(uint256.Int).Sub(allowed, amount))
		}
	}
	return f.move(ctx, from, to, amount)
}

func (f *Fixed) Approve(ctx *state.Context, spender common.Address, amount *uint256.Int) error {
	if err := ctx.Expect(f.addr); err != nil {
		return err
	}
	if spender == common.ZeroAddress {
		return ErrZeroAddress
	}
	owner := ctx.Caller()
	f.setAllowance(ctx, owner, spender, amount)
	ctx.Emit(Approval{Owner: owner, Spender: spender, Amount: common.Clone(amount)})
	return nil
}

// Invoke dispatches payloads for transfer, transferFrom and approve.
func (f *Fixed) Invoke(ctx *state.Context, payload []byte) error {
	call, err := ABI.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w on %s", err, f.symbol)
	}
	switch call.Method {
	case "transfer":
		to, amount, err := AddressAndAmount(call, 0)
		if err != nil {
			return err
		}
		return f.Transfer(ctx, to, amount)
	case "approve":
		spender, amount, err := AddressAndAmount(call, 0)
		if err != nil {
			return err
		}
		return f.Approve(ctx, spender, amount)
	case "transferFrom":
		from, err := call.Address(0)
		if err != nil {
			return err
		}
		to, amount, err := AddressAndAmount(call, 1)
		if err != nil {
			return err
		}
		return f.TransferFrom(ctx, from, to, amount)
	}
	return fmt.Errorf("%w: %s on %s", state.ErrUnknownSelector, call.Method, f.symbol)
}

func (f *Fixed) move(ctx *state.Context, from, to common.Address, amount *uint256.Int) error {
	if to == common.ZeroAddress {
		return ErrZeroAddress
	}
	fromBalance := common.OrZero(f.balances[from])
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %v holds %v, wanted %v", ErrInsufficientBalance, from, fromBalance, amount)
	}
	f.setBalance(ctx, from, new(uint256.Int).Sub(fromBalance, amount))
	f.setBalance(ctx, to, new(uint256.Int).Add(common.OrZero(f.balances[to]), amount))
	ctx.Emit(Transfer{From: from, To: to, Amount: common.Clone(amount)})
	return nil
}

func (f *Fixed) setBalance(ctx *state.Context, account common.Address, value *uint256.Int) {
	old, had := f.balances[account]
	f.balances[account] = value
	ctx.Record(func() {
		if had {
			f.balances[account] = old
		} else {
			delete(f.balances, account)
		}
	})
}

func (f *Fixed) setAllowance(ctx *state.Context, owner, spender common.Address, value *uint256.Int) {
	spenders, found := f.allowances[owner]
	if !found {
		spenders = map[common.Address]*uint256.Int{}
		f.allowances[owner] = spenders
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

// AddressAndAmount decodes an (address, uint256) argument pair starting at
// the given position.
func AddressAndAmount(call common.Call, first int) (common.Address, *uint256.Int, error) {
	addr, err := call.Address(first)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := call.Uint256(first + 1)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, amount, nil
}
