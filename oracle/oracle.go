// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package oracle

//go:generate mockgen -source oracle.go -destination oracle_mocks.go -package oracle

import (
	"fmt"
	"time"

	"github.com/0xsoniclabs/tracy"
	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrUpdateTooSoon = common.ConstError("oracle update too soon")
	ErrNoObservation = common.ConstError("not enough price observations")
	ErrAlreadyPrimed = common.ConstError("oracle already primed")
	ErrNoReserves    = common.ConstError("pair has no reserves")
	ErrInvalidToken  = common.ConstError("token is not part of the observed pair")
	ErrInvalidPeriod = common.ConstError("sampling period must be between one second and 2^32 seconds")
)

// DefaultPeriod is the minimum time between two observations.
const DefaultPeriod = 24 * time.Hour

// resolution is the number of fractional bits of UQ112x112 prices.
const resolution = 112

// ABI lists the methods the oracle accepts as payloads.
var ABI = common.MustParseABI(`[
	{"type":"function","name":"update","inputs":[],"outputs":[]}
]`)

// Pair is the constant-product pool whose price accumulators are observed.
// Prices are UQ112x112 fixed-point numbers; timestamps are block times
// truncated to 32 bits.
type Pair interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	GetReserves() (reserve0, reserve1 *uint256.Int, blockTimestampLast uint32)
	Price0CumulativeLast() *uint256.Int
	Price1CumulativeLast() *uint256.Int
}

// Observation is a sample of the pair's cumulative prices.
type Observation struct {
	Price0Cumulative *uint256.Int
	Price1Cumulative *uint256.Int
	Timestamp        uint32
}

// Updated is emitted whenever the oracle captures an observation.
type Updated struct {
	Observation Observation
	Elapsed     uint32
}

func (Updated) EventName() string { return "OracleUpdated" }

// Oracle computes a time-weighted average price over the window between its
// two most recent observations of a pair. Observations are rate limited to
// one per period, so the window always spans at least one full period.
type Oracle struct {
	addr    common.Address
	pair    Pair
	token0  common.Address
	token1  common.Address
	period  uint32
	last    *Observation
	current *Observation
}

// New creates an oracle observing pair with the given minimum sampling
// period.
func New(addr common.Address, pair Pair, period time.Duration) (*Oracle, error) {
	seconds := period / time.Second
	if seconds < 1 || seconds > 1<<32-1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}
	return &Oracle{
		addr:   addr,
		pair:   pair,
		token0: pair.Token0(),
		token1: pair.Token1(),
		period: uint32(seconds),
	}, nil
}

func (o *Oracle) Address() common.Address { return o.addr }

func (o *Oracle) Pair() Pair { return o.pair }

func (o *Oracle) Tokens() (common.Address, common.Address) {
	return o.token0, o.token1
}

func (o *Oracle) Period() time.Duration {
	return time.Duration(o.period) * time.Second
}

// Primed reports whether a first observation was captured.
func (o *Oracle) Primed() bool {
	return o.current != nil
}

// Observations returns the number of retained observations.
func (o *Oracle) Observations() int {
	switch {
	case o.last != nil:
		return 2
	case o.current != nil:
		return 1
	}
	return 0
}

// Prime captures the pair's last synchronized accumulators as the first
// observation.
func (o *Oracle) Prime(ctx *state.Context) error {
	if err := ctx.Expect(o.addr); err != nil {
		return err
	}
	if o.current != nil {
		return ErrAlreadyPrimed
	}
	reserve0, reserve1, timestamp := o.pair.GetReserves()
	if reserve0.IsZero() || reserve1.IsZero() {
		return ErrNoReserves
	}
	o.current = &Observation{
		Price0Cumulative: common.Clone(common.OrZero(o.pair.Price0CumulativeLast())),
		Price1Cumulative: common.Clone(common.OrZero(o.pair.Price1CumulativeLast())),
		Timestamp:        timestamp,
	}
	ctx.Record(func() { o.current = nil })
	ctx.Emit(Updated{Observation: *o.current})
	return nil
}

// Due reports whether an update would be accepted at the given time.
func (o *Oracle) Due(now uint64) bool {
	return o.current != nil && uint32(now)-o.current.Timestamp >= o.period
}

// Update captures the pair's current cumulative prices. The previous
// observation becomes the start of the averaging window.
func (o *Oracle) Update(ctx *state.Context) error {
	zone := tracy.ZoneBegin("oracle::update")
	defer zone.End()

	if err := ctx.Expect(o.addr); err != nil {
		return err
	}
	if o.current == nil {
		return ErrNoObservation
	}
	next, err := CurrentCumulativePrices(o.pair, ctx.Time())
	if err != nil {
		return err
	}
	elapsed := next.Timestamp - o.current.Timestamp
	if elapsed < o.period {
		return fmt.Errorf("%w: %ds of %ds elapsed", ErrUpdateTooSoon, elapsed, o.period)
	}

	oldLast, oldCurrent := o.last, o.current
	o.last, o.current = o.current, &next
	ctx.Record(func() { o.last, o.current = oldLast, oldCurrent })
	ctx.Emit(Updated{Observation: next, Elapsed: elapsed})
	log.Debug("Oracle updated", "timestamp", next.Timestamp, "elapsed", elapsed)
	return nil
}

// Consult returns the amount of the other pair token worth amountIn of
// token, priced at the average over the last observation window.
func (o *Oracle) Consult(token common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if o.last == nil {
		return nil, ErrNoObservation
	}
	var from, to *uint256.Int
	switch token {
	case o.token0:
		from, to = o.last.Price0Cumulative, o.current.Price0Cumulative
	case o.token1:
		from, to = o.last.Price1Cumulative, o.current.Price1Cumulative
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, token)
	}
	elapsed := uint64(o.current.Timestamp - o.last.Timestamp)
	if elapsed == 0 {
		return nil, ErrNoObservation
	}

	// Accumulators wrap; their difference over the window does not.
	average := new(uint256.Int).Sub(to, from)
	average.Div(average, uint256.NewInt(elapsed))
	amountOut, overflow := new(uint256.Int).MulOverflow(average, amountIn)
	if overflow {
		return nil, fmt.Errorf("%w: %v * %v", common.ErrOverflow, average, amountIn)
	}
	return amountOut.Rsh(amountOut, resolution), nil
}

// Invoke dispatches update() payloads.
func (o *Oracle) Invoke(ctx *state.Context, payload []byte) error {
	if _, err := ABI.Decode(payload); err != nil {
		return fmt.Errorf("%w on oracle", err)
	}
	return o.Update(ctx)
}

// CurrentCumulativePrices extends the pair's accumulators to the given
// time as if the pair had synchronized in that block.
func CurrentCumulativePrices(pair Pair, now uint64) (Observation, error) {
	timestamp := uint32(now)
	res := Observation{
		Price0Cumulative: common.Clone(common.OrZero(pair.Price0CumulativeLast())),
		Price1Cumulative: common.Clone(common.OrZero(pair.Price1CumulativeLast())),
		Timestamp:        timestamp,
	}
	reserve0, reserve1, last := pair.GetReserves()
	if last == timestamp {
		return res, nil
	}
	if reserve0.IsZero() || reserve1.IsZero() {
		return Observation{}, ErrNoReserves
	}
	elapsed := uint256.NewInt(uint64(timestamp - last))
	price0 := Encode(reserve1, reserve0)
	price1 := Encode(reserve0, reserve1)
	res.Price0Cumulative.Add(res.Price0Cumulative, price0.Mul(price0, elapsed))
	res.Price1Cumulative.Add(res.Price1Cumulative, price1.Mul(price1, elapsed))
	return res, nil
}

// Encode returns numerator/denominator as a UQ112x112 number. Both
// operands are reserves and fit into 112 bits.
func Encode(numerator, denominator *uint256.Int) *uint256.Int {
	res := new(uint256.Int).Lsh(numerator, resolution)
	return res.Div(res, denominator)
}

// Snapshot is the persistent form of an oracle.
type Snapshot struct {
	Period  uint32
	Primed  bool
	Rotated bool
	Last    Observation
	Current Observation
}

func (o *Oracle) Export() *Snapshot {
	res := &Snapshot{Period: o.period}
	if o.current != nil {
		res.Primed = true
		res.Current = cloneObservation(*o.current)
	}
	if o.last != nil {
		res.Rotated = true
		res.Last = cloneObservation(*o.last)
	}
	return res
}

// Restore recreates an oracle observing pair from a snapshot.
func Restore(addr common.Address, pair Pair, snapshot *Snapshot) (*Oracle, error) {
	res, err := New(addr, pair, time.Duration(snapshot.Period)*time.Second)
	if err != nil {
		return nil, err
	}
	if snapshot.Rotated && !snapshot.Primed {
		return nil, fmt.Errorf("oracle snapshot has a window but no current observation")
	}
	if snapshot.Primed {
		current := cloneObservation(snapshot.Current)
		res.current = &current
	}
	if snapshot.Rotated {
		last := cloneObservation(snapshot.Last)
		res.last = &last
	}
	return res, nil
}

func cloneObservation(o Observation) Observation {
	return Observation{
		Price0Cumulative: common.Clone(common.OrZero(o.Price0Cumulative)),
		Price1Cumulative: common.Clone(common.OrZero(o.Price1Cumulative)),
		Timestamp:        o.Timestamp,
	}
}
