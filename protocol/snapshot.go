// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package protocol

import (
	"fmt"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/ledger"
	"github.com/MostProtocol/most-mbtc-core/oracle"
	"github.com/MostProtocol/most-mbtc-core/orchestrator"
	"github.com/MostProtocol/most-mbtc-core/pool"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/timelock"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/ethereum/go-ethereum/log"
)

// Snapshot is the complete state of a deployment. Parameters are not part of
// it; a snapshot is restored under a configuration.
type Snapshot struct {
	Deployer     common.Address
	Time         uint64
	Paired       *token.Snapshot
	Ledger       *ledger.Snapshot
	Pool         *pool.Snapshot
	Oracle       *oracle.Snapshot
	Orchestrator *orchestrator.Snapshot
	Locks        []LockSnapshot
}

type LockSnapshot struct {
	Beneficiary common.Address
	ReleaseTime uint64
}

// Export captures the state of all contracts between two executions.
func (p *Protocol) Export() *Snapshot {
	res := &Snapshot{Deployer: p.deployer}
	locks := p.Locks()
	p.host.View(func() {
		res.Time = p.host.Clock().Now()
		res.Paired = p.paired.Export()
		res.Ledger = p.ledger.Export()
		res.Pool = p.pool.Export()
		res.Oracle = p.oracle.Export()
		res.Orchestrator = p.orchestrator.Export()
		for _, lock := range locks {
			res.Locks = append(res.Locks, LockSnapshot{Beneficiary: lock.Beneficiary(), ReleaseTime: lock.ReleaseTime()})
		}
	})
	return res
}

// Restore recreates a deployment from a snapshot on a fresh host.
func Restore(snapshot *Snapshot, config Config, clock common.Clock) (*Protocol, error) {
	if snapshot.Deployer == common.ZeroAddress {
		return nil, ErrNoDeployer
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if snapshot.Paired == nil || snapshot.Ledger == nil || snapshot.Pool == nil ||
		snapshot.Oracle == nil || snapshot.Orchestrator == nil {
		return nil, fmt.Errorf("incomplete protocol snapshot")
	}
	p := &Protocol{host: state.NewHost(clock), deployer: snapshot.Deployer, config: config}

	var err error
	p.paired, err = token.RestoreFixed(p.addressOf(noncePaired), snapshot.Paired)
	if err != nil {
		return nil, err
	}
	p.ledger, err = ledger.Restore(p.addressOf(nonceLedger), snapshot.Ledger)
	if err != nil {
		return nil, err
	}
	p.pool, err = pool.Restore(p.addressOf(noncePool), snapshot.Pool, p.ledger, p.paired)
	if err != nil {
		return nil, err
	}
	p.oracle, err = oracle.Restore(p.addressOf(nonceOracle), p.pool, snapshot.Oracle)
	if err != nil {
		return nil, err
	}
	if p.ledger.Stage() != ledger.StageUninitialized {
		if err := p.ledger.Reattach(p.oracle); err != nil {
			return nil, err
		}
	}
	p.orchestrator, err = orchestrator.Restore(p.addressOf(nonceOrchestrator), snapshot.Orchestrator,
		p.ledger, p.oracle, p.orchestratorConfig())
	if err != nil {
		return nil, err
	}
	for i, entry := range snapshot.Locks {
		p.locks = append(p.locks, timelock.New(p.addressOf(firstLockNonce+uint64(i)),
			entry.Beneficiary, p.deployer, entry.ReleaseTime, p.ledger, p.paired))
	}
	if err := p.wire(); err != nil {
		return nil, err
	}
	log.Info("Protocol restored", "deployer", p.deployer, "epoch", p.orchestrator.Epoch(),
		"supply", p.ledger.TotalSupply())
	return p, nil
}
