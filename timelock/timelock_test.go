// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package timelock

import (
	"testing"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	holder      = common.Address{0xa1}
	beneficiary = common.Address{0xbe}
	admin       = common.Address{0xad}
	stranger    = common.Address{0x55}
)

const start = 1_000

type fixture struct {
	clock *common.ManualClock
	host  *state.Host
	tok   *token.Fixed
	lock  *Lock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := common.NewManualClock(start)
	host := state.NewHost(clock)
	tok := token.NewFixed(common.Address{0x70}, "Most", "MOST", 9, common.Units(100, 9), holder)
	lock := New(common.Address{0x10}, beneficiary, admin, start+uint64(time.Hour/time.Second), tok)
	require.NoError(t, host.Register(tok))
	require.NoError(t, host.Register(lock))

	_, err := host.Execute(holder, tok.Address(), func(ctx *state.Context) error {
		return tok.Transfer(ctx, lock.Address(), common.Units(40, 9))
	})
	require.NoError(t, err)
	return &fixture{clock: clock, host: host, tok: tok, lock: lock}
}

func (f *fixture) release(caller common.Address) (*state.Receipt, error) {
	return f.host.Execute(caller, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.Release(ctx, f.tok)
	})
}

func TestLock_Release_FailsBeforeMaturity(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	f.clock.Advance(time.Hour - time.Second)
	_, err := f.release(stranger)
	require.ErrorIs(err, ErrNotMature)
	require.Equal(common.Units(40, 9), f.tok.BalanceOf(f.lock.Address()))
}

func TestLock_Release_SendsWholeBalanceToBeneficiary(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	f.clock.Advance(time.Hour)
	receipt, err := f.release(stranger)
	require.NoError(err)
	require.True(f.tok.BalanceOf(f.lock.Address()).IsZero())
	require.Equal(common.Units(40, 9), f.tok.BalanceOf(beneficiary))

	released := state.Find[Released](receipt)
	require.Len(released, 1)
	require.Equal(Released{Asset: f.tok.Address(), Beneficiary: beneficiary, Amount: common.Units(40, 9)}, released[0])

	_, err = f.release(stranger)
	require.ErrorIs(err, ErrNothingToRelease)
}

func TestLock_NewReleaseTime_IsAdminOnlyAndPostpones(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	_, err := f.host.Execute(stranger, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.NewReleaseTime(ctx, time.Hour)
	})
	require.ErrorIs(err, ErrUnauthorized)

	_, err = f.host.Execute(admin, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.NewReleaseTime(ctx, time.Hour)
	})
	require.NoError(err)
	require.Equal(uint64(start+2*3600), f.lock.ReleaseTime())

	f.clock.Advance(time.Hour)
	_, err = f.release(stranger)
	require.ErrorIs(err, ErrNotMature)

	f.clock.Advance(time.Hour)
	_, err = f.release(stranger)
	require.NoError(err)
}

func TestLock_NewReleaseTime_IsUndoneWithExecution(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	_, err := f.host.Execute(admin, f.lock.Address(), func(ctx *state.Context) error {
		if err := f.lock.NewReleaseTime(ctx, time.Hour); err != nil {
			return err
		}
		return common.ConstError("abort")
	})
	require.Error(err)
	require.Equal(uint64(start+3600), f.lock.ReleaseTime())
}

func TestLock_Invoke_DispatchesPayloads(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	pack := func(method string, args ...any) []byte {
		payload, err := ABI.Pack(method, args...)
		require.NoError(err)
		return payload
	}

	_, err := f.host.Execute(admin, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.Invoke(ctx, pack("newReleaseTime", uint256.NewInt(60)))
	})
	require.NoError(err)
	require.Equal(uint64(start+3660), f.lock.ReleaseTime())

	f.clock.Set(start + 3660)
	_, err = f.host.Execute(stranger, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.Invoke(ctx, pack("release", stranger))
	})
	require.ErrorIs(err, ErrUnknownAsset)

	_, err = f.host.Execute(stranger, f.lock.Address(), func(ctx *state.Context) error {
		return f.lock.Invoke(ctx, pack("release", f.tok.Address()))
	})
	require.NoError(err)
	require.Equal(common.Units(40, 9), f.tok.BalanceOf(beneficiary))
}
