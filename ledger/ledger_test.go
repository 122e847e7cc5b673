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

import (
	"errors"
	"testing"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	ledgerAddr  = common.Address{0x10}
	oracleAddr  = common.Address{0x20}
	pairedAddr  = common.Address{0x30}
	authority   = common.Address{0x40}
	creator     = common.Address{0xc1}
	holder      = common.Address{0xd1}
	spender     = common.Address{0xd2}
	initialUnit = common.Units(1_000_000, Decimals)
)

func newTestLedger(t *testing.T) (*state.Host, *Ledger) {
	t.Helper()
	host := state.NewHost(common.NewManualClock(1_000))
	l, err := New(ledgerAddr, Config{Name: "MOST", Symbol: "MOST", InitialSupply: initialUnit}, creator)
	require.NoError(t, err)
	require.NoError(t, host.Register(l))
	return host, l
}

func newMockSource(ctrl *gomock.Controller) *MockPriceSource {
	source := NewMockPriceSource(ctrl)
	source.EXPECT().Address().Return(oracleAddr).AnyTimes()
	source.EXPECT().Tokens().Return(pairedAddr, ledgerAddr).AnyTimes()
	return source
}

// newBoundLedger returns a ledger that is initialized and has a rebase
// authority.
func newBoundLedger(t *testing.T) (*state.Host, *Ledger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	source := newMockSource(ctrl)
	source.EXPECT().Primed().Return(true)

	host, l := newTestLedger(t)
	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		if err := l.Initialize(ctx, source, pairedAddr); err != nil {
			return err
		}
		return l.SetRebaseAuthority(ctx, authority)
	})
	require.NoError(t, err)
	return host, l
}

func transfer(host *state.Host, l *Ledger, from, to common.Address, amount *uint256.Int) error {
	_, err := host.Execute(from, l.Address(), func(ctx *state.Context) error {
		return l.Transfer(ctx, to, amount)
	})
	return err
}

func rebase(host *state.Host, l *Ledger, epoch uint64, delta *uint256.Int, positive bool) (*state.Receipt, error) {
	// The authority calls into the ledger from its own frame.
	return host.Execute(authority, authority, func(ctx *state.Context) error {
		return ctx.Call(l.Address(), func(sub *state.Context) error {
			_, err := l.Rebase(sub, epoch, delta, positive)
			return err
		})
	})
}

func TestLedger_New_MintsInitialSupplyToCreator(t *testing.T) {
	require := require.New(t)
	_, l := newTestLedger(t)

	require.Equal(initialUnit, l.TotalSupply())
	require.Equal(initialUnit, l.BalanceOf(creator))
	require.Equal(common.Pow10(24), l.TotalShares())
	require.Equal(InitialScalingFactor, l.ScalingFactor())
	require.Equal(uint8(9), l.Decimals())
	require.Equal(StageUninitialized, l.Stage())
}

func TestLedger_Transfer_ConservesBalancesAndSupply(t *testing.T) {
	require := require.New(t)
	host, l := newTestLedger(t)

	amount := common.Units(5, Decimals)
	require.NoError(transfer(host, l, creator, holder, amount))
	require.Equal(common.Units(999_995, Decimals), l.BalanceOf(creator))
	require.Equal(amount, l.BalanceOf(holder))
	require.Equal(initialUnit, l.TotalSupply())

	err := transfer(host, l, holder, spender, common.Units(6, Decimals))
	require.ErrorIs(err, ErrInsufficientBalance)
	require.Equal(amount, l.BalanceOf(holder))

	require.ErrorIs(transfer(host, l, holder, common.ZeroAddress, uint256.NewInt(1)), ErrZeroAddress)
}

func TestLedger_TransferFrom_ChecksAllowance(t *testing.T) {
	require := require.New(t)
	host, l := newTestLedger(t)

	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Approve(ctx, spender, uint256.NewInt(1_000))
	})
	require.NoError(err)
	require.Equal(uint256.NewInt(1_000), l.Allowance(creator, spender))

	_, err = host.Execute(spender, ledgerAddr, func(ctx *state.Context) error {
		return l.TransferFrom(ctx, creator, holder, uint256.NewInt(600))
	})
	require.NoError(err)
	require.Equal(uint256.NewInt(400), l.Allowance(creator, spender))
	require.Equal(uint256.NewInt(600), l.BalanceOf(holder))

	_, err = host.Execute(spender, ledgerAddr, func(ctx *state.Context) error {
		return l.TransferFrom(ctx, creator, holder, uint256.NewInt(401))
	})
	require.ErrorIs(err, ErrInsufficientAllowance)

	// Owners move their own balance without an allowance.
	_, err = host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.TransferFrom(ctx, creator, holder, uint256.NewInt(10_000))
	})
	require.NoError(err)
}

func TestLedger_UnlimitedAllowanceIsNeverDecremented(t *testing.T) {
	require := require.New(t)
	host, l := newTestLedger(t)

	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Approve(ctx, spender, common.MaxAmount)
	})
	require.NoError(err)
	_, err = host.Execute(spender, ledgerAddr, func(ctx *state.Context) error {
		return l.TransferFrom(ctx, creator, holder, common.Units(7, Decimals))
	})
	require.NoError(err)
	require.Equal(common.MaxAmount, l.Allowance(creator, spender))
}

func TestLedger_Initialize_BindsOnceAndPrimesSource(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	source := newMockSource(ctrl)
	host, l := newTestLedger(t)

	gomock.InOrder(
		source.EXPECT().Primed().Return(false),
		source.EXPECT().Prime(gomock.Any()).DoAndReturn(func(ctx *state.Context) error {
			require.Equal(ledgerAddr, ctx.Caller())
			require.Equal(oracleAddr, ctx.Self())
			return nil
		}),
	)
	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Initialize(ctx, source, pairedAddr)
	})
	require.NoError(err)
	require.Equal(StageInitialized, l.Stage())
	bound, paired := l.Binding()
	require.Equal(source, bound)
	require.Equal(pairedAddr, paired)

	_, err = host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Initialize(ctx, source, pairedAddr)
	})
	require.ErrorIs(err, ErrAlreadyInitialized)
}

func TestLedger_Initialize_RevertsWhenPrimingFails(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	source := newMockSource(ctrl)
	host, l := newTestLedger(t)

	injected := errors.New("injected")
	source.EXPECT().Primed().Return(false)
	source.EXPECT().Prime(gomock.Any()).Return(injected)

	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Initialize(ctx, source, pairedAddr)
	})
	require.ErrorIs(err, injected)
	require.Equal(StageUninitialized, l.Stage())
	bound, _ := l.Binding()
	require.Nil(bound)
}

func TestLedger_Initialize_RejectsForeignSourcesAndCallers(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	source := newMockSource(ctrl)
	host, l := newTestLedger(t)

	_, err := host.Execute(holder, ledgerAddr, func(ctx *state.Context) error {
		return l.Initialize(ctx, source, pairedAddr)
	})
	require.ErrorIs(err, ErrUnauthorized)

	_, err = host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.Initialize(ctx, source, common.Address{0x99})
	})
	require.ErrorIs(err, ErrInvalidBinding)
	require.Equal(StageUninitialized, l.Stage())
}

func TestLedger_CapabilityHandoff_IsOneWay(t *testing.T) {
	require := require.New(t)
	host, l := newTestLedger(t)

	_, err := host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.SetRebaseAuthority(ctx, authority)
	})
	require.ErrorIs(err, ErrNotInitialized)

	host, l = newBoundLedger(t)
	require.Equal(StageAuthorityBound, l.Stage())
	require.Equal(authority, l.RebaseAuthority())

	_, err = host.Execute(holder, ledgerAddr, func(ctx *state.Context) error {
		return l.SetRebaseAuthority(ctx, holder)
	})
	require.ErrorIs(err, ErrUnauthorized)

	_, err = host.Execute(creator, ledgerAddr, l.RelinquishCreator)
	require.NoError(err)
	require.Equal(common.ZeroAddress, l.Creator())

	_, err = host.Execute(creator, ledgerAddr, func(ctx *state.Context) error {
		return l.SetRebaseAuthority(ctx, creator)
	})
	require.ErrorIs(err, ErrUnauthorized)
	_, err = host.Execute(creator, ledgerAddr, l.RelinquishCreator)
	require.ErrorIs(err, ErrUnauthorized)
	require.Equal(StageAuthorityBound, l.Stage())
}

func TestLedger_Initialize_RejectsRepeatsAfterCreatorIsGone(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	source := newMockSource(ctrl)
	host, l := newBoundLedger(t)

	_, err := host.Execute(creator, ledgerAddr, l.RelinquishCreator)
	require.NoError(err)

	for _, caller := range []common.Address{creator, holder} {
		_, err = host.Execute(caller, ledgerAddr, func(ctx *state.Context) error {
			return l.Initialize(ctx, source, pairedAddr)
		})
		require.ErrorIs(err, ErrAlreadyInitialized)
	}
	require.Equal(StageAuthorityBound, l.Stage())
}

func TestLedger_Transfer_MovesExactAmountsAfterRebase(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)
	require.NoError(transfer(host, l, creator, holder, uint256.NewInt(5_123_456_789)))
	require.NoError(transfer(host, l, creator, spender, uint256.NewInt(3_987_654_321)))
	_, err := rebase(host, l, 1, common.Units(50_000, Decimals), false)
	require.NoError(err)
	require.Equal(common.Units(950_000, Decimals), l.TotalSupply())

	for _, amount := range []uint64{1, 7, 999_999, 1_000_000_000} {
		for _, pair := range [][2]common.Address{{holder, spender}, {spender, holder}} {
			from, to := pair[0], pair[1]
			fromBefore, toBefore := l.BalanceOf(from), l.BalanceOf(to)
			require.NoError(transfer(host, l, from, to, uint256.NewInt(amount)))
			require.Equal(new(uint256.Int).SubUint64(fromBefore, amount), l.BalanceOf(from))
			require.Equal(new(uint256.Int).AddUint64(toBefore, amount), l.BalanceOf(to))
		}
	}
	require.Equal(common.Units(950_000, Decimals), l.TotalSupply())
}

func TestLedger_Transfer_BetweenUnitBoundariesStaysWithinDust(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)
	_, err := rebase(host, l, 1, common.Units(50_000, Decimals), false)
	require.NoError(err)

	// The creator holds every share and the recipient none, so both sit
	// exactly on a unit boundary.
	before := l.BalanceOf(creator)
	require.Equal(common.Units(950_000, Decimals), before)
	require.NoError(transfer(host, l, creator, holder, uint256.NewInt(1)))

	require.Equal(uint256.NewInt(1), l.BalanceOf(holder))
	spent := new(uint256.Int).Sub(before, l.BalanceOf(creator))
	require.Equal(uint256.NewInt(1+MaxTransferDust), spent)
	require.Equal(common.Units(950_000, Decimals), l.TotalSupply())
}

func TestLedger_Rebase_ScalesEveryBalance(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)
	require.NoError(transfer(host, l, creator, holder, common.Units(5, Decimals)))

	receipt, err := rebase(host, l, 1, common.Units(50_000, Decimals), false)
	require.NoError(err)
	require.Equal(common.Units(950_000, Decimals), l.TotalSupply())
	require.Equal(common.Units(94_999_525, Decimals-2), l.BalanceOf(creator))
	require.Equal(common.Units(475, Decimals-2), l.BalanceOf(holder))
	require.Equal(common.Pow10(24), l.TotalShares())
	require.Equal(uint64(1), l.LastEpoch())

	events := state.Find[SupplyChanged](receipt)
	require.Len(events, 1)
	require.Equal(uint64(1), events[0].Epoch)
	require.Equal(common.Units(950_000, Decimals), events[0].TotalSupply)

	_, err = rebase(host, l, 2, common.Units(95_000, Decimals), true)
	require.NoError(err)
	require.Equal(common.Units(1_045_000, Decimals), l.TotalSupply())
}

func TestLedger_Rebase_ZeroDeltaKeepsScalingFactor(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)
	before := l.ScalingFactor()

	receipt, err := rebase(host, l, 1, new(uint256.Int), true)
	require.NoError(err)
	require.Equal(before, l.ScalingFactor())
	require.Equal(initialUnit, l.TotalSupply())
	require.Len(state.Find[SupplyChanged](receipt), 1)
}

func TestLedger_Rebase_RejectsInvalidRequests(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)

	_, err := rebase(host, l, 1, initialUnit, false)
	require.ErrorIs(err, ErrSupplyUnderflow)

	_, err = rebase(host, l, 1, common.MaxAmount, true)
	require.ErrorIs(err, ErrSupplyOverflow)

	_, err = rebase(host, l, 1, uint256.NewInt(1), true)
	require.NoError(err)
	_, err = rebase(host, l, 1, uint256.NewInt(1), true)
	require.ErrorIs(err, ErrStaleEpoch)

	_, err = host.Execute(creator, creator, func(ctx *state.Context) error {
		return ctx.Call(ledgerAddr, func(sub *state.Context) error {
			_, err := l.Rebase(sub, 5, uint256.NewInt(1), true)
			return err
		})
	})
	require.ErrorIs(err, ErrUnauthorized)
	require.Equal(uint64(1), l.LastEpoch())
}

func TestLedger_Rebase_RunsAtMostOncePerExecution(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)

	rebase, err := ABI.Pack("rebase", uint64(2), uint256.NewInt(1), true)
	require.NoError(err)
	_, err = host.Execute(authority, authority, func(ctx *state.Context) error {
		if err := ctx.Call(ledgerAddr, func(sub *state.Context) error {
			_, err := l.Rebase(sub, 1, uint256.NewInt(1), true)
			return err
		}); err != nil {
			return err
		}
		return ctx.Invoke(ledgerAddr, rebase)
	})
	require.ErrorIs(err, state.ErrReentrant)
	require.Equal(initialUnit, l.TotalSupply())
	require.Equal(uint64(0), l.LastEpoch())
}

func TestLedger_BalancesNeverExceedTotalSupply(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)

	accounts := []common.Address{creator, holder, spender, {0xe1}, {0xe2}}
	for i, account := range accounts[1:] {
		require.NoError(transfer(host, l, creator, account, uint256.NewInt(uint64(1_234_567_891*(i+1)))))
	}
	deltas := []struct {
		amount   uint64
		positive bool
	}{
		{33_333_333_333_333, false},
		{77_777_777_777, true},
		{1, false},
		{12_345_678_901_234, true},
	}
	for i, delta := range deltas {
		_, err := rebase(host, l, uint64(i+1), uint256.NewInt(delta.amount), delta.positive)
		require.NoError(err)

		sumBefore := new(uint256.Int).Add(l.BalanceOf(holder), l.BalanceOf(spender))
		require.NoError(transfer(host, l, holder, spender, uint256.NewInt(999_999)))
		sumAfter := new(uint256.Int).Add(l.BalanceOf(holder), l.BalanceOf(spender))
		require.Equal(sumBefore, sumAfter)

		sum := new(uint256.Int)
		for _, account := range accounts {
			sum.Add(sum, l.BalanceOf(account))
		}
		supply := l.TotalSupply()
		require.True(sum.Cmp(supply) <= 0, "sum %v exceeds supply %v", sum, supply)
		dust := new(uint256.Int).Sub(supply, sum)
		require.True(dust.Cmp(uint256.NewInt(uint64(len(accounts)))) <= 0, "dust %v too large", dust)
	}
}

func TestLedger_ExportRestore_ReproducesState(t *testing.T) {
	require := require.New(t)
	host, l := newBoundLedger(t)
	require.NoError(transfer(host, l, creator, holder, common.Units(5, Decimals)))
	_, err := host.Execute(holder, ledgerAddr, func(ctx *state.Context) error {
		return l.Approve(ctx, spender, uint256.NewInt(77))
	})
	require.NoError(err)
	_, err = rebase(host, l, 1, common.Units(50_000, Decimals), true)
	require.NoError(err)

	snapshot := l.Export()
	require.Len(snapshot.Accounts, 2)
	require.Equal(holder, snapshot.Accounts[1].Account)

	restored, err := Restore(ledgerAddr, snapshot)
	require.NoError(err)
	require.Equal(snapshot, restored.Export())
	require.Equal(l.BalanceOf(holder), restored.BalanceOf(holder))
	require.Equal(l.TotalSupply(), restored.TotalSupply())
	require.Equal(uint256.NewInt(77), restored.Allowance(holder, spender))

	_, err = restored.Consult(pairedAddr, uint256.NewInt(1))
	require.ErrorIs(err, ErrNotInitialized)

	ctrl := gomock.NewController(t)
	other := NewMockPriceSource(ctrl)
	other.EXPECT().Address().Return(common.Address{0x99}).AnyTimes()
	require.ErrorIs(restored.Reattach(other), ErrInvalidBinding)
	require.NoError(restored.Reattach(newMockSource(ctrl)))
	require.ErrorIs(restored.Reattach(newMockSource(ctrl)), ErrAlreadyInitialized)
	require.Equal(snapshot, restored.Export())

	snapshot.Source = common.ZeroAddress
	_, err = Restore(ledgerAddr, snapshot)
	require.ErrorIs(err, ErrInvalidBinding)
}
