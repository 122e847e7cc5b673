// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package journal

import (
	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
)

// Entry is one journaled event.
type Entry struct {
	Seq      uint64 // position in commit order, starting at 1
	Time     uint64
	Caller   common.Address
	Contract common.Address
	Name     string
	Data     string // JSON encoding of the event
}

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	Name     string
	Contract common.Address
	Since    uint64
	Limit    int
}

// Journal records the events of committed executions. Consume may buffer;
// Flush waits until everything consumed so far is persisted.
type Journal interface {
	state.LogSink
	Flush() error
	Query(filter Filter) ([]Entry, error)
	Close() error
}

// noop discards all events.
type noop struct{}

// NewNoop returns a journal that records nothing.
func NewNoop() Journal { return noop{} }

func (noop) Consume(*state.Receipt)        {}
func (noop) Flush() error                  { return nil }
func (noop) Query(Filter) ([]Entry, error) { return nil, nil }
func (noop) Close() error                  { return nil }
