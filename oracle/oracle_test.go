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

import (
	"errors"
	"testing"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	oracleAddr = common.Address{0x0a}
	token0     = common.Address{0x01}
	token1     = common.Address{0x02}
	anyone     = common.Address{0xee}
)

const day = uint64(24 * 60 * 60)

// pairState backs a mocked pair with mutable reserves and accumulators.
type pairState struct {
	reserve0, reserve1 *uint256.Int
	cumulative0        *uint256.Int
	cumulative1        *uint256.Int
	timestampLast      uint32
}

// sync advances the accumulators to now and installs new reserves.
func (p *pairState) sync(now uint64, reserve0, reserve1 *uint256.Int) {
	elapsed := uint256.NewInt(uint64(uint32(now) - p.timestampLast))
	price0 := Encode(p.reserve1, p.reserve0)
	price1 := Encode(p.reserve0, p.reserve1)
	p.cumulative0.Add(p.cumulative0, price0.Mul(price0, elapsed))
	p.cumulative1.Add(p.cumulative1, price1.Mul(price1, elapsed))
	p.reserve0, p.reserve1, p.timestampLast = reserve0, reserve1, uint32(now)
}

func newMockedPair(ctrl *gomock.Controller, ps *pairState) *MockPair {
	pair := NewMockPair(ctrl)
	pair.EXPECT().Address().Return(common.Address{0x0b}).AnyTimes()
	pair.EXPECT().Token0().Return(token0).AnyTimes()
	pair.EXPECT().Token1().Return(token1).AnyTimes()
	pair.EXPECT().GetReserves().DoAndReturn(func() (*uint256.Int, *uint256.Int, uint32) {
		return common.Clone(ps.reserve0), common.Clone(ps.reserve1), ps.timestampLast
	}).AnyTimes()
	pair.EXPECT().Price0CumulativeLast().DoAndReturn(func() *uint256.Int {
		return common.Clone(ps.cumulative0)
	}).AnyTimes()
	pair.EXPECT().Price1CumulativeLast().DoAndReturn(func() *uint256.Int {
		return common.Clone(ps.cumulative1)
	}).AnyTimes()
	return pair
}

type fixture struct {
	clock  *common.ManualClock
	host   *state.Host
	pair   *pairState
	oracle *Oracle
}

func newFixture(t *testing.T, start uint64) *fixture {
	t.Helper()
	pair := &pairState{
		reserve0:      common.Units(5, 9),
		reserve1:      common.Units(10, 18),
		cumulative0:   new(uint256.Int),
		cumulative1:   new(uint256.Int),
		timestampLast: uint32(start),
	}
	clock := common.NewManualClock(start)
	host := state.NewHost(clock)
	oracle, err := New(oracleAddr, newMockedPair(gomock.NewController(t), pair), DefaultPeriod)
	require.NoError(t, err)
	require.NoError(t, host.Register(oracle))
	return &fixture{clock: clock, host: host, pair: pair, oracle: oracle}
}

func (f *fixture) prime() error {
	_, err := f.host.Execute(anyone, oracleAddr, f.oracle.Prime)
	return err
}

func (f *fixture) update() error {
	_, err := f.host.Execute(anyone, oracleAddr, f.oracle.Update)
	return err
}

func TestOracle_New_RejectsInvalidPeriods(t *testing.T) {
	pair := newMockedPair(gomock.NewController(t), &pairState{})
	_, err := New(oracleAddr, pair, 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = New(oracleAddr, pair, 500*time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestOracle_Prime_CapturesPairState(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)

	require.False(f.oracle.Primed())
	require.ErrorIs(f.update(), ErrNoObservation)
	require.NoError(f.prime())
	require.True(f.oracle.Primed())
	require.Equal(1, f.oracle.Observations())
	require.ErrorIs(f.prime(), ErrAlreadyPrimed)

	_, err := f.oracle.Consult(token0, uint256.NewInt(100))
	require.ErrorIs(err, ErrNoObservation)
}

func TestOracle_Prime_RequiresReserves(t *testing.T) {
	f := newFixture(t, 1_000)
	f.pair.reserve0 = new(uint256.Int)
	require.ErrorIs(t, f.prime(), ErrNoReserves)
	require.False(t, f.oracle.Primed())
}

func TestOracle_Update_IsRateLimited(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)
	require.NoError(f.prime())

	f.clock.Advance(23 * time.Hour)
	require.False(f.oracle.Due(f.clock.Now()))
	require.ErrorIs(f.update(), ErrUpdateTooSoon)
	require.Equal(1, f.oracle.Observations())

	f.clock.Advance(time.Hour)
	require.True(f.oracle.Due(f.clock.Now()))
	require.NoError(f.update())
	require.Equal(2, f.oracle.Observations())

	require.ErrorIs(f.update(), ErrUpdateTooSoon)
}

func TestOracle_Consult_QuotesBothDirections(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)
	require.NoError(f.prime())
	f.clock.Advance(DefaultPeriod)
	require.NoError(f.update())

	out, err := f.oracle.Consult(token0, uint256.NewInt(100))
	require.NoError(err)
	require.Equal(common.Units(2, 11), out)

	// The reverse price is not representable exactly and rounds down.
	out, err = f.oracle.Consult(token1, common.Units(1, 18))
	require.NoError(err)
	require.Equal(uint256.NewInt(499_999_999), out)

	_, err = f.oracle.Consult(common.Address{0x99}, uint256.NewInt(1))
	require.ErrorIs(err, ErrInvalidToken)

	_, err = f.oracle.Consult(token0, common.MaxAmount)
	require.ErrorIs(err, common.ErrOverflow)
}

func TestOracle_Consult_AveragesOverTheWindow(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)
	require.NoError(f.prime())

	// Half way through the window the price halves.
	f.pair.sync(f.clock.Advance(12*time.Hour), common.Units(10, 9), common.Units(10, 18))
	f.clock.Advance(12 * time.Hour)
	require.NoError(f.update())

	out, err := f.oracle.Consult(token0, uint256.NewInt(1))
	require.NoError(err)
	require.Equal(uint256.NewInt(1_500_000_000), out)

	// Price manipulation after the last update does not affect the quote.
	f.pair.sync(f.clock.Advance(time.Second), common.Units(1, 9), common.Units(1_000, 18))
	out, err = f.oracle.Consult(token0, uint256.NewInt(1))
	require.NoError(err)
	require.Equal(uint256.NewInt(1_500_000_000), out)
}

func TestOracle_Update_HandlesTimestampWrap(t *testing.T) {
	require := require.New(t)
	start := uint64(1<<32) - 3_600
	f := newFixture(t, start)
	require.NoError(f.prime())

	f.clock.Set(start + day)
	require.True(f.oracle.Due(f.clock.Now()))
	require.NoError(f.update())

	out, err := f.oracle.Consult(token0, uint256.NewInt(1))
	require.NoError(err)
	require.Equal(uint256.NewInt(2_000_000_000), out)
}

func TestOracle_Update_IsRevertedWithEnclosingExecution(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)
	require.NoError(f.prime())
	f.clock.Advance(DefaultPeriod)

	update, err := ABI.Pack("update")
	require.NoError(err)
	injected := errors.New("injected")
	_, err = f.host.Execute(anyone, anyone, func(ctx *state.Context) error {
		if err := ctx.Invoke(oracleAddr, update); err != nil {
			return err
		}
		return injected
	})
	require.ErrorIs(err, injected)
	require.Equal(1, f.oracle.Observations())
	require.True(f.oracle.Due(f.clock.Now()))
}

func TestOracle_ExportRestore_KeepsWindow(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, 1_000)
	require.NoError(f.prime())
	f.clock.Advance(DefaultPeriod)
	require.NoError(f.update())

	snapshot := f.oracle.Export()
	restored, err := Restore(oracleAddr, f.oracle.Pair(), snapshot)
	require.NoError(err)
	require.Equal(snapshot, restored.Export())

	want, err := f.oracle.Consult(token0, uint256.NewInt(100))
	require.NoError(err)
	got, err := restored.Consult(token0, uint256.NewInt(100))
	require.NoError(err)
	require.Equal(want, got)
}
