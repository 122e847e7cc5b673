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

import "github.com/MostProtocol/most-mbtc-core/common"

// Event is a typed record emitted by a contract.
type Event interface {
	EventName() string
}

// Log is an event together with the contract that emitted it.
type Log struct {
	Address common.Address
	Event   Event
}

// Find returns the events of type T in the receipt, in emission order.
func Find[T Event](receipt *Receipt) []T {
	var res []T
	if receipt == nil {
		return nil
	}
	for _, entry := range receipt.Logs {
		if event, ok := entry.Event.(T); ok {
			res = append(res, event)
		}
	}
	return res
}
