// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package keeper

//go:generate mockgen -source keeper.go -destination keeper_mocks.go -package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/common/future"
	"github.com/MostProtocol/most-mbtc-core/oracle"
	"github.com/MostProtocol/most-mbtc-core/orchestrator"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/ethereum/go-ethereum/log"
	"github.com/robfig/cron/v3"
)

const ErrNoAttempt = common.ConstError("no rebase attempted yet")

// Archive keeps protocol snapshots.
type Archive interface {
	Save(snapshot *protocol.Snapshot) (common.Hash, error)
}

// Config describes the schedules of the keeper.
type Config struct {
	UpdateCron string // oracle refresh schedule
	RebaseCron string // rebase attempt schedule
	Caller     common.Address
}

// Keeper drives a deployment on a schedule: it refreshes the oracle and
// attempts a rebase, archiving a snapshot after every successful one.
// Attempts rejected because they come too early are expected and only
// logged at debug level.
type Keeper struct {
	protocol *protocol.Protocol
	archive  Archive // may be nil
	caller   common.Address
	cron     *cron.Cron

	mu   sync.Mutex // protects last
	last future.Result[*orchestrator.Outcome]
}

// New creates a keeper and registers its jobs. The archive may be nil.
func New(p *protocol.Protocol, archive Archive, config Config, parser cron.ScheduleParser) (*Keeper, error) {
	if config.Caller == common.ZeroAddress {
		return nil, fmt.Errorf("keeper caller must be set")
	}
	k := &Keeper{
		protocol: p,
		archive:  archive,
		caller:   config.Caller,
		cron:     cron.New(cron.WithParser(parser)),
		last:     future.Err[*orchestrator.Outcome](ErrNoAttempt),
	}
	if _, err := k.cron.AddFunc(config.UpdateCron, func() { k.Update() }); err != nil {
		return nil, fmt.Errorf("register update job: %w", err)
	}
	if _, err := k.cron.AddFunc(config.RebaseCron, func() { k.Rebase() }); err != nil {
		return nil, fmt.Errorf("register rebase job: %w", err)
	}
	return k, nil
}

// Start runs the scheduled jobs in the background.
func (k *Keeper) Start() {
	k.cron.Start()
	log.Info("Keeper started", "caller", k.caller, "jobs", len(k.cron.Entries()))
}

// Stop ends scheduling and waits for running jobs to finish or ctx to
// expire.
func (k *Keeper) Stop(ctx context.Context) error {
	done := k.cron.Stop()
	select {
	case <-done.Done():
		log.Info("Keeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update refreshes the oracle. It reports whether the window was advanced.
func (k *Keeper) Update() future.Result[bool] {
	_, err := k.protocol.UpdateOracle(k.caller)
	switch {
	case err == nil:
		log.Debug("Oracle updated", "time", k.protocol.Host().Clock().Now())
		return future.Ok(true)
	case errors.Is(err, oracle.ErrUpdateTooSoon):
		log.Debug("Oracle update skipped", "reason", err)
		return future.Ok(false)
	}
	log.Warn("Oracle update failed", "err", err)
	return future.Err[bool](err)
}

// Rebase attempts one rebase and archives the resulting state.
func (k *Keeper) Rebase() future.Result[*orchestrator.Outcome] {
	res := k.rebase()
	k.mu.Lock()
	k.last = res
	k.mu.Unlock()
	return res
}

func (k *Keeper) rebase() future.Result[*orchestrator.Outcome] {
	outcome, _, err := k.protocol.Rebase(k.caller)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTooSoon) || errors.Is(err, oracle.ErrNoObservation) {
			log.Debug("Rebase skipped", "reason", err)
		} else {
			log.Warn("Rebase failed", "err", err)
		}
		return future.Err[*orchestrator.Outcome](err)
	}
	log.Info("Rebase completed", "epoch", outcome.Epoch, "price", outcome.Price,
		"delta", outcome.Delta, "positive", outcome.Positive, "supply", outcome.TotalSupply)

	if k.archive != nil {
		hash, err := k.archive.Save(k.protocol.Export())
		if err != nil {
			log.Error("Failed to archive snapshot", "epoch", outcome.Epoch, "err", err)
			return future.Err[*orchestrator.Outcome](fmt.Errorf("rebase of epoch %d not archived: %w", outcome.Epoch, err))
		}
		log.Debug("Snapshot archived", "epoch", outcome.Epoch, "hash", hash)
	}
	return future.Ok(outcome)
}

// RunNow refreshes the oracle and attempts a rebase immediately.
func (k *Keeper) RunNow() future.Result[*orchestrator.Outcome] {
	if res := k.Update(); res.Failed() {
		return future.Err[*orchestrator.Outcome](res.Error)
	}
	return k.Rebase()
}

// Last returns the result of the most recent rebase attempt.
func (k *Keeper) Last() future.Result[*orchestrator.Outcome] {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last
}
