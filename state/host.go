// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"fmt"
	"sync"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	ErrReentrant         = common.ConstError("reentrant call")
	ErrNoSuchContract    = common.ConstError("no such contract")
	ErrUnknownSelector   = common.ErrUnknownMethod
	ErrMisrouted         = common.ConstError("context is addressed to another contract")
	ErrDuplicateContract = common.ConstError("contract address already registered")
)

// Contract is a unit of state reachable through payload-based calls. All
// contracts registered with a host may be targeted by Context.Invoke.
type Contract interface {
	Address() common.Address
	Invoke(ctx *Context, payload []byte) error
}

// LogSink receives the logs of every successfully committed execution, in
// commit order. Sinks are called while the host is still locked and must
// not execute on the host themselves.
type LogSink interface {
	Consume(receipt *Receipt)
}

// Receipt summarizes a committed execution.
type Receipt struct {
	Time   uint64
	Caller common.Address
	Logs   []Log
}

// Host is the execution environment of all contracts. It runs one execution
// at a time; each execution is atomic: it either completes or every state
// change it made is reverted through the undo journal.
type Host struct {
	mu        sync.Mutex
	clock     common.Clock
	contracts map[common.Address]Contract
	sinks     []LogSink

	// Per-execution state, reset at the end of each execution.
	journal []func()
	logs    []Log
	guards  map[string]struct{}
	latches map[string]struct{}
}

// NewHost creates a host reading block timestamps from the given clock.
func NewHost(clock common.Clock) *Host {
	return &Host{
		clock:     clock,
		contracts: map[common.Address]Contract{},
		guards:    map[string]struct{}{},
		latches:   map[string]struct{}{},
	}
}

// Register makes a contract reachable by its address.
func (h *Host) Register(contract Contract) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := contract.Address()
	if _, found := h.contracts[addr]; found {
		return fmt.Errorf("%w: %v", ErrDuplicateContract, addr)
	}
	h.contracts[addr] = contract
	return nil
}

// Subscribe adds a sink for committed logs.
func (h *Host) Subscribe(sink LogSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Clock returns the clock used for block timestamps.
func (h *Host) Clock() common.Clock {
	return h.clock
}

// Execute runs the given function as an atomic execution on behalf of caller
// against the contract at target. The context passed to run is addressed to
// target, so run is expected to call a method of that contract. If run fails,
// all recorded state changes are undone and the error is returned.
//
// Execute must not be called from within run; contracts reach other
// contracts through Context.Call and Context.Invoke.
func (h *Host) Execute(caller, target common.Address, run func(*Context) error) (*Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.reset()

	ctx := &Context{
		host:   h,
		caller: caller,
		self:   target,
		origin: caller,
		time:   h.clock.Now(),
	}
	if err := run(ctx); err != nil {
		h.revertTo(checkpoint{})
		log.Debug("Execution reverted", "caller", caller, "target", target, "err", err)
		return nil, err
	}

	receipt := &Receipt{
		Time:   ctx.time,
		Caller: caller,
		Logs:   h.logs,
	}
	for _, sink := range h.sinks {
		sink.Consume(receipt)
	}
	return receipt, nil
}

// View runs a read-only function under the host lock, so it observes a
// consistent state between executions.
func (h *Host) View(run func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	run()
}

type checkpoint struct {
	journal int
	logs    int
}

func (h *Host) checkpoint() checkpoint {
	return checkpoint{journal: len(h.journal), logs: len(h.logs)}
}

func (h *Host) revertTo(cp checkpoint) {
	for i := len(h.journal) - 1; i >= cp.journal; i-- {
		h.journal[i]()
	}
	h.journal = h.journal[:cp.journal]
	h.logs = h.logs[:cp.logs]
}

func (h *Host) reset() {
	h.journal = nil
	h.logs = nil
	clear(h.guards)
	clear(h.latches)
}
