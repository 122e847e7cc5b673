// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pool

import (
	"fmt"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/oracle"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrIdenticalAssets       = common.ConstError("pair assets must differ")
	ErrInsufficientLiquidity = common.ConstError("insufficient liquidity minted")
	ErrReserveOverflow       = common.ConstError("reserve exceeds 112 bits")
)

// MinimumLiquidity is locked forever by the first mint.
const MinimumLiquidity = 1_000

var (
	// ABI lists the methods the pool accepts as payloads.
	ABI = common.MustParseABI(`[
	{"type":"function","name":"sync","inputs":[],"outputs":[]},
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"}],"outputs":[{"name":"liquidity","type":"uint256"}]}
]`)

	maxReserve = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)
)

// Sync is emitted whenever the reserves are refreshed from the balances.
type Sync struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

func (Sync) EventName() string { return "Sync" }

// Mint is emitted when liquidity is added.
type Mint struct {
	To        common.Address
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Liquidity *uint256.Int
}

func (Mint) EventName() string { return "Mint" }

// Pool is a constant-product pair keeping cached reserves of two assets and
// time-weighted cumulative prices of each asset in terms of the other. It
// does not swap; reserves move only when assets are sent to the pool and
// Mint or Sync is called.
type Pool struct {
	addr   common.Address
	asset0 token.Asset
	asset1 token.Asset

	reserves
	liquidity map[common.Address]*uint256.Int
}

// reserves are the scalar fields saved and restored as a unit.
type reserves struct {
	reserve0             *uint256.Int
	reserve1             *uint256.Int
	blockTimestampLast   uint32
	price0CumulativeLast *uint256.Int
	price1CumulativeLast *uint256.Int
	totalLiquidity       *uint256.Int
}

// New creates an empty pair of the given assets. The asset with the lower
// address becomes token0.
func New(addr common.Address, a, b token.Asset) (*Pool, error) {
	switch cmp := common.CompareAddresses(a.Address(), b.Address()); {
	case cmp == 0:
		return nil, ErrIdenticalAssets
	case cmp > 0:
		a, b = b, a
	}
	return &Pool{
		addr:   addr,
		asset0: a,
		asset1: b,
		reserves: reserves{
			reserve0:             new(uint256.Int),
			reserve1:             new(uint256.Int),
			price0CumulativeLast: new(uint256.Int),
			price1CumulativeLast: new(uint256.Int),
			totalLiquidity:       new(uint256.Int),
		},
		liquidity: map[common.Address]*uint256.Int{},
	}, nil
}

func (p *Pool) Address() common.Address { return p.addr }
func (p *Pool) Token0() common.Address  { return p.asset0.Address() }
func (p *Pool) Token1() common.Address  { return p.asset1.Address() }

func (p *Pool) GetReserves() (*uint256.Int, *uint256.Int, uint32) {
	return common.Clone(p.reserve0), common.Clone(p.reserve1), p.blockTimestampLast
}

func (p *Pool) Price0CumulativeLast() *uint256.Int {
	return common.Clone(p.price0CumulativeLast)
}

func (p *Pool) Price1CumulativeLast() *uint256.Int {
	return common.Clone(p.price1CumulativeLast)
}

func (p *Pool) TotalLiquidity() *uint256.Int {
	return common.Clone(p.totalLiquidity)
}

func (p *Pool) LiquidityOf(account common.Address) *uint256.Int {
	return common.Clone(common.OrZero(p.liquidity[account]))
}

// ReserveOf returns the cached reserve of the given asset.
func (p *Pool) ReserveOf(asset common.Address) (*uint256.Int, error) {
	switch asset {
	case p.asset0.Address():
		return common.Clone(p.reserve0), nil
	case p.asset1.Address():
		return common.Clone(p.reserve1), nil
	}
	return nil, fmt.Errorf("%w: %v", oracle.ErrInvalidToken, asset)
}

// Mint credits liquidity for the assets sent to the pool since the last
// update. The first mint locks MinimumLiquidity.
func (p *Pool) Mint(ctx *state.Context, to common.Address) (*uint256.Int, error) {
	if err := ctx.Expect(p.addr); err != nil {
		return nil, err
	}
	balance0 := p.asset0.BalanceOf(p.addr)
	balance1 := p.asset1.BalanceOf(p.addr)
	if balance0.Lt(p.reserve0) || balance1.Lt(p.reserve1) {
		return nil, fmt.Errorf("%w: balances below reserves", ErrInsufficientLiquidity)
	}
	amount0 := new(uint256.Int).Sub(balance0, p.reserve0)
	amount1 := new(uint256.Int).Sub(balance1, p.reserve1)

	var minted *uint256.Int
	locked := new(uint256.Int)
	if p.totalLiquidity.IsZero() {
		product, overflow := new(uint256.Int).MulOverflow(amount0, amount1)
		if overflow {
			return nil, ErrReserveOverflow
		}
		minted = product.Sqrt(product)
		if minted.CmpUint64(MinimumLiquidity) <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		minted.SubUint64(minted, MinimumLiquidity)
		locked.SetUint64(MinimumLiquidity)
	} else {
		by0, err := common.MulDiv(amount0, p.totalLiquidity, p.reserve0)
		if err != nil {
			return nil, err
		}
		by1, err := common.MulDiv(amount1, p.totalLiquidity, p.reserve1)
		if err != nil {
			return nil, err
		}
		minted = by0
		if by1.Lt(by0) {
			minted = by1
		}
		if minted.IsZero() {
			return nil, ErrInsufficientLiquidity
		}
	}

	if err := p.update(ctx, balance0, balance1); err != nil {
		return nil, err
	}
	if !locked.IsZero() {
		p.credit(ctx, common.ZeroAddress, locked)
	}
	p.credit(ctx, to, minted)
	ctx.Emit(Mint{To: to, Amount0: amount0, Amount1: amount1, Liquidity: common.Clone(minted)})
	return minted, nil
}

// Sync forces the reserves to match the pool's balances. It is called after
// a balance changed without a transfer, e.g. after a rebase.
func (p *Pool) Sync(ctx *state.Context) error {
	if err := ctx.Expect(p.addr); err != nil {
		return err
	}
	return p.update(ctx, p.asset0.BalanceOf(p.addr), p.asset1.BalanceOf(p.addr))
}

// Invoke dispatches sync() and mint(address) payloads.
func (p *Pool) Invoke(ctx *state.Context, payload []byte) error {
	call, err := ABI.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w on pool", err)
	}
	switch call.Method {
	case "sync":
		return p.Sync(ctx)
	case "mint":
		to, err := call.Address(0)
		if err != nil {
			return err
		}
		_, err = p.Mint(ctx, to)
		return err
	}
	return fmt.Errorf("%w: %s on pool", state.ErrUnknownSelector, call.Method)
}

// update accumulates the prices of the elapsed period at the old reserves
// and installs the new ones.
func (p *Pool) update(ctx *state.Context, balance0, balance1 *uint256.Int) error {
	if balance0.Gt(maxReserve) || balance1.Gt(maxReserve) {
		return ErrReserveOverflow
	}
	saved := p.reserves
	ctx.Record(func() { p.reserves = saved })

	next := reserves{
		reserve0:             common.Clone(balance0),
		reserve1:             common.Clone(balance1),
		blockTimestampLast:   uint32(ctx.Time()),
		price0CumulativeLast: common.Clone(p.price0CumulativeLast),
		price1CumulativeLast: common.Clone(p.price1CumulativeLast),
		totalLiquidity:       p.totalLiquidity,
	}
	elapsed := next.blockTimestampLast - p.blockTimestampLast
	if elapsed > 0 && !p.reserve0.IsZero() && !p.reserve1.IsZero() {
		seconds := uint256.NewInt(uint64(elapsed))
		price0 := oracle.Encode(p.reserve1, p.reserve0)
		price1 := oracle.Encode(p.reserve0, p.reserve1)
		// Accumulators wrap on overflow.
		next.price0CumulativeLast.Add(next.price0CumulativeLast, price0.Mul(price0, seconds))
		next.price1CumulativeLast.Add(next.price1CumulativeLast, price1.Mul(price1, seconds))
	}
	p.reserves = next
	ctx.Emit(Sync{Reserve0: common.Clone(balance0), Reserve1: common.Clone(balance1)})
	log.Debug("Pool synced", "pool", p.addr, "reserve0", balance0, "reserve1", balance1)
	return nil
}

func (p *Pool) credit(ctx *state.Context, account common.Address, amount *uint256.Int) {
	old, had := p.liquidity[account]
	p.liquidity[account] = new(uint256.Int).Add(common.OrZero(old), amount)
	total := p.totalLiquidity
	p.totalLiquidity = new(uint256.Int).Add(total, amount)
	ctx.Record(func() {
		p.totalLiquidity = total
		if had {
			p.liquidity[account] = old
		} else {
			delete(p.liquidity, account)
		}
	})
}
