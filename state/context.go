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

	"github.com/MostProtocol/most-mbtc-core/common"
)

// Context is a call frame within an execution. It carries the identity of
// the immediate caller, the contract the frame is addressed to, and the
// block timestamp shared by all frames of the execution.
type Context struct {
	host   *Host
	parent *Context
	caller common.Address
	self   common.Address
	origin common.Address
	time   uint64
}

// Caller is the account or contract that opened this frame.
func (c *Context) Caller() common.Address {
	return c.caller
}

// Self is the contract this frame is addressed to.
func (c *Context) Self() common.Address {
	return c.self
}

// Origin is the external account that started the execution.
func (c *Context) Origin() common.Address {
	return c.origin
}

// Time is the block timestamp of the execution in seconds.
func (c *Context) Time() uint64 {
	return c.time
}

// Depth is the number of frames above this one.
func (c *Context) Depth() int {
	depth := 0
	for cur := c.parent; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}

// Expect fails with ErrMisrouted unless the frame is addressed to the given
// contract. Contracts call this first in every state-changing method.
func (c *Context) Expect(self common.Address) error {
	if c.self != self {
		return fmt.Errorf("%w: want %v, got %v", ErrMisrouted, self, c.self)
	}
	return nil
}

// Record registers an undo action restoring state changed by the caller. On
// revert, undo actions run in reverse registration order.
func (c *Context) Record(undo func()) {
	c.host.journal = append(c.host.journal, undo)
}

// Emit appends a log entry attributed to the frame's contract.
func (c *Context) Emit(event Event) {
	c.host.logs = append(c.host.logs, Log{
		Address: c.self,
		Event:   event,
	})
}

// Call opens a nested frame addressed to target whose caller is this frame's
// contract. If run fails, the changes made within the nested frame are
// reverted before the error is returned.
func (c *Context) Call(target common.Address, run func(*Context) error) error {
	nested := &Context{
		host:   c.host,
		parent: c,
		caller: c.self,
		self:   target,
		origin: c.origin,
		time:   c.time,
	}
	cp := c.host.checkpoint()
	if err := run(nested); err != nil {
		c.host.revertTo(cp)
		return err
	}
	return nil
}

// Invoke calls the registered contract at target with the given payload.
func (c *Context) Invoke(target common.Address, payload []byte) error {
	contract, found := c.host.contracts[target]
	if !found {
		return fmt.Errorf("%w: %v", ErrNoSuchContract, target)
	}
	return c.Call(target, func(nested *Context) error {
		return contract.Invoke(nested, payload)
	})
}

// Enter acquires a non-reentrancy guard for the given key. The returned
// function releases it. Acquiring a held guard fails with ErrReentrant.
func (c *Context) Enter(key string) (func(), error) {
	if _, held := c.host.guards[key]; held {
		return nil, fmt.Errorf("%w: %s", ErrReentrant, key)
	}
	c.host.guards[key] = struct{}{}
	return func() { delete(c.host.guards, key) }, nil
}

// Latch succeeds the first time it is called for a key within an execution
// and fails with ErrReentrant afterwards.
func (c *Context) Latch(key string) error {
	if _, taken := c.host.latches[key]; taken {
		return fmt.Errorf("%w: %s already ran in this execution", ErrReentrant, key)
	}
	c.host.latches[key] = struct{}{}
	c.Record(func() { delete(c.host.latches, key) })
	return nil
}
