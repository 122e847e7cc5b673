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
	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/holiman/uint256"
)

// Stage tracks the one-way capability handoff of a ledger. Stages only ever
// advance.
type Stage uint8

const (
	StageUninitialized Stage = iota
	StageInitialized
	StageAuthorityBound
)

func (s Stage) String() string {
	switch s {
	case StageUninitialized:
		return "uninitialized"
	case StageInitialized:
		return "initialized"
	case StageAuthorityBound:
		return "authority-bound"
	}
	return "unknown"
}

// SupplyChanged is emitted by every rebase, including those not changing
// the supply.
type SupplyChanged struct {
	Epoch         uint64
	TotalSupply   *uint256.Int
	ScalingFactor *uint256.Int
}

func (SupplyChanged) EventName() string { return "SupplyChanged" }

type Initialized struct {
	Source common.Address
	Paired common.Address
}

func (Initialized) EventName() string { return "Initialized" }

type RebaseAuthorityChanged struct {
	Authority common.Address
}

func (RebaseAuthorityChanged) EventName() string { return "RebaseAuthorityChanged" }

type CreatorRelinquished struct {
	Creator common.Address
}

func (CreatorRelinquished) EventName() string { return "CreatorRelinquished" }
