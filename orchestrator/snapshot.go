// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package orchestrator

import (
	"github.com/MostProtocol/most-mbtc-core/common"
)

type Snapshot struct {
	Admin      common.Address
	Epoch      uint64
	LastRebase uint64
	Batch      []Transaction
}

func (o *Orchestrator) Export() *Snapshot {
	return &Snapshot{
		Admin:      o.admin,
		Epoch:      o.epoch,
		LastRebase: o.lastRebase,
		Batch:      o.Transactions(),
	}
}

// Restore recreates an orchestrator from a snapshot. Parameters are not
// part of the snapshot and are taken from config.
func Restore(addr common.Address, snapshot *Snapshot, ledger Ledger, oracle PriceOracle, config Config) (*Orchestrator, error) {
	res, err := New(addr, snapshot.Admin, ledger, oracle, config)
	if err != nil {
		return nil, err
	}
	res.epoch = snapshot.Epoch
	res.lastRebase = snapshot.LastRebase
	for _, tx := range snapshot.Batch {
		res.batch = append(res.batch, Transaction{Target: tx.Target, Payload: append([]byte(nil), tx.Payload...)})
	}
	return res, nil
}
