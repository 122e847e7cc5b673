// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package synchelper

import (
	"testing"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.Address{0xad}
	stranger = common.Address{0x55}
	nobody   = common.Address{0x99}
)

// syncer counts sync() calls and rejects everything else.
type syncer struct {
	addr  common.Address
	syncs int
}

func (s *syncer) Address() common.Address { return s.addr }

func (s *syncer) Invoke(ctx *state.Context, payload []byte) error {
	if _, err := DestinationABI.Decode(payload); err != nil {
		return err
	}
	s.syncs++
	ctx.Record(func() { s.syncs-- })
	return nil
}

type fixture struct {
	host   *state.Host
	tok    *token.Fixed
	helper *Helper
	dest   *syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := state.NewHost(common.NewManualClock(1))
	helperAddr := common.Address{0x20}
	tok := token.NewFixed(common.Address{0x70}, "Most", "MOST", 9, common.Units(10, 9), helperAddr)
	helper := New(helperAddr, admin, tok)
	dest := &syncer{addr: common.Address{0x30}}
	for _, c := range []state.Contract{tok, helper, dest} {
		require.NoError(t, host.Register(c))
	}
	return &fixture{host: host, tok: tok, helper: helper, dest: dest}
}

func (f *fixture) transferAndSync(caller, dest common.Address, amount *uint256.Int, sync bool) error {
	_, err := f.host.Execute(caller, f.helper.Address(), func(ctx *state.Context) error {
		return f.helper.TransferAndSync(ctx, f.tok, dest, amount, sync)
	})
	return err
}

func TestHelper_TransferAndSync_MovesFundsAndSyncs(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	require.NoError(f.transferAndSync(admin, f.dest.addr, common.Units(4, 9), true))
	require.Equal(common.Units(4, 9), f.tok.BalanceOf(f.dest.addr))
	require.Equal(common.Units(6, 9), f.tok.BalanceOf(f.helper.Address()))
	require.Equal(1, f.dest.syncs)

	require.NoError(f.transferAndSync(admin, f.dest.addr, common.Units(1, 9), false))
	require.Equal(common.Units(5, 9), f.tok.BalanceOf(f.dest.addr))
	require.Equal(1, f.dest.syncs)
}

func TestHelper_TransferAndSync_IsAdminOnly(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	err := f.transferAndSync(stranger, f.dest.addr, common.Units(1, 9), true)
	require.ErrorIs(err, ErrUnauthorized)
	require.True(f.tok.BalanceOf(f.dest.addr).IsZero())
}

func TestHelper_TransferAndSync_RollsBackWithoutSyncEntry(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	err := f.transferAndSync(admin, nobody, common.Units(1, 9), true)
	require.ErrorIs(err, ErrNoSyncEntry)
	require.ErrorIs(err, state.ErrNoSuchContract)
	require.True(f.tok.BalanceOf(nobody).IsZero())
	require.Equal(common.Units(10, 9), f.tok.BalanceOf(f.helper.Address()))

	err = f.transferAndSync(admin, f.tok.Address(), common.Units(1, 9), true)
	require.ErrorIs(err, ErrNoSyncEntry)
	require.ErrorIs(err, state.ErrUnknownSelector)
	require.True(f.tok.BalanceOf(f.tok.Address()).IsZero())
}

func TestHelper_Invoke_DecodesArguments(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	payload, err := ABI.Pack("transferAndSync", f.tok.Address(), f.dest.addr, common.Units(2, 9), true)
	require.NoError(err)
	_, err = f.host.Execute(admin, f.helper.Address(), func(ctx *state.Context) error {
		return f.helper.Invoke(ctx, payload)
	})
	require.NoError(err)
	require.Equal(common.Units(2, 9), f.tok.BalanceOf(f.dest.addr))
	require.Equal(1, f.dest.syncs)

	payload, err = ABI.Pack("transferAndSync", nobody, f.dest.addr, common.Units(2, 9), true)
	require.NoError(err)
	_, err = f.host.Execute(admin, f.helper.Address(), func(ctx *state.Context) error {
		return f.helper.Invoke(ctx, payload)
	})
	require.ErrorIs(err, ErrUnknownAsset)
}
