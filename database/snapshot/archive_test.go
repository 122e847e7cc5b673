// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package snapshot

import (
	"testing"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/stretchr/testify/require"
)

var deployer = common.HexToAddress("0xd0d0")

// newRebasedProtocol deploys a protocol whose pool quotes the ledger below
// its peg and runs the first rebase.
func newRebasedProtocol(t *testing.T) (*protocol.Protocol, *common.ManualClock) {
	t.Helper()
	require := require.New(t)
	clock := common.NewManualClock(1_700_000_000)
	p, err := protocol.Deploy(protocol.DefaultConfig(), clock, deployer)
	require.NoError(err)
	_, err = p.AddLiquidity(deployer, common.Units(5, 9), common.Units(10, 18))
	require.NoError(err)
	require.NoError(p.Initialize())
	require.NoError(p.HandOff(false))
	clock.Advance(24 * time.Hour)
	_, _, err = p.Rebase(deployer)
	require.NoError(err)
	return p, clock
}

func TestArchive_SaveAndLoad_PreservesCommitment(t *testing.T) {
	require := require.New(t)
	p, clock := newRebasedProtocol(t)
	archive := OpenMemory()

	snapshot := p.Export()
	hash, err := archive.Save(snapshot)
	require.NoError(err)
	want, err := Commitment(snapshot)
	require.NoError(err)
	require.Equal(want, hash)

	loaded, loadedHash, err := archive.Load(1)
	require.NoError(err)
	require.Equal(hash, loadedHash)
	again, err := Commitment(loaded)
	require.NoError(err)
	require.Equal(hash, again)

	restored, err := protocol.Restore(loaded, protocol.DefaultConfig(), clock)
	require.NoError(err)
	require.Equal(p.Ledger().TotalSupply(), restored.Ledger().TotalSupply())
	require.Equal(p.Ledger().BalanceOf(deployer), restored.Ledger().BalanceOf(deployer))
	require.Equal(uint64(1), restored.Orchestrator().Epoch())

	_, _, err = archive.Load(2)
	require.ErrorIs(err, ErrNotFound)
}

func TestArchive_Latest_FollowsLastSave(t *testing.T) {
	require := require.New(t)
	p, clock := newRebasedProtocol(t)
	archive := OpenMemory()

	_, _, err := archive.Latest()
	require.ErrorIs(err, ErrNotFound)

	_, err = archive.Save(p.Export())
	require.NoError(err)
	clock.Advance(24 * time.Hour)
	_, _, err = p.Rebase(deployer)
	require.NoError(err)
	second, err := archive.Save(p.Export())
	require.NoError(err)

	latest, hash, err := archive.Latest()
	require.NoError(err)
	require.Equal(second, hash)
	require.Equal(uint64(2), latest.Orchestrator.Epoch)

	first, _, err := archive.Load(1)
	require.NoError(err)
	require.Equal(uint64(1), first.Orchestrator.Epoch)
}

func TestArchive_DetectsCorruption(t *testing.T) {
	require := require.New(t)
	p, _ := newRebasedProtocol(t)
	store := newMemoryDbStore()
	archive := NewArchive(store)

	_, err := archive.Save(p.Export())
	require.NoError(err)
	entry, err := store.Get(epochKey(1))
	require.NoError(err)
	entry[0] ^= 0xff
	require.NoError(store.Set(epochKey(1), entry))

	_, _, err = archive.Load(1)
	require.ErrorIs(err, ErrCorrupted)

	require.NoError(store.Set(epochKey(1), []byte{1, 2, 3}))
	_, _, err = archive.Load(1)
	require.ErrorIs(err, ErrCorrupted)
}

func TestArchive_PersistsInLevelDB(t *testing.T) {
	require := require.New(t)
	p, _ := newRebasedProtocol(t)
	dir := t.TempDir()

	archive, err := OpenLevelDB(dir)
	require.NoError(err)
	hash, err := archive.Save(p.Export())
	require.NoError(err)
	require.NoError(archive.Close())

	archive, err = OpenLevelDB(dir)
	require.NoError(err)
	_, got, err := archive.Latest()
	require.NoError(err)
	require.Equal(hash, got)
	require.NoError(archive.Close())
}
