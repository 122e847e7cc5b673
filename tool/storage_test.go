// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"testing"

	"github.com/MostProtocol/most-mbtc-core/database/journal"
	"github.com/MostProtocol/most-mbtc-core/database/snapshot"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

type failingJournal struct {
	journal.Journal
	err error
}

func (j failingJournal) Close() error { return j.err }

func TestNode_Close_ReportsEveryFailure(t *testing.T) {
	require := require.New(t)
	archive, err := snapshot.OpenLevelDB(t.TempDir())
	require.NoError(err)
	require.NoError(archive.Close())

	injected := errors.New("injected")
	n := &node{archive: archive, journal: failingJournal{Journal: journal.NewNoop(), err: injected}}
	err = n.Close()
	require.ErrorIs(err, injected)
	require.ErrorIs(err, leveldb.ErrClosed)
}

func TestNode_Close_SucceedsForHealthyStores(t *testing.T) {
	n := &node{archive: snapshot.OpenMemory(), journal: journal.NewNoop()}
	require.NoError(t, n.Close())
}
