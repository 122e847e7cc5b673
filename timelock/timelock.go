// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package timelock

import (
	"fmt"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrNotMature        = common.ConstError("lock has not matured")
	ErrNothingToRelease = common.ConstError("no balance to release")
	ErrUnauthorized     = common.ConstError("caller is not the lock administrator")
	ErrUnknownAsset     = common.ConstError("asset not tracked by lock")
	ErrReleaseTimeWraps = common.ConstError("release time overflows")
)

// ABI lists the methods the lock accepts as payloads.
var ABI = common.MustParseABI(`[
	{"type":"function","name":"release","inputs":[{"name":"asset","type":"address"}],"outputs":[]},
	{"type":"function","name":"newReleaseTime","inputs":[{"name":"seconds","type":"uint256"}],"outputs":[]}
]`)

type Released struct {
	Asset       common.Address
	Beneficiary common.Address
	Amount      *uint256.Int
}

func (Released) EventName() string { return "Released" }

type ReleaseTimeChanged struct {
	ReleaseTime uint64
}

func (ReleaseTimeChanged) EventName() string { return "ReleaseTimeChanged" }

// Lock holds balances of any asset and releases them to a fixed beneficiary
// once the release time has passed. The administrator may only postpone the
// release.
type Lock struct {
	addr        common.Address
	beneficiary common.Address
	admin       common.Address
	releaseTime uint64
	assets      map[common.Address]token.Asset
}

// New creates a lock. The given assets can be released through payload
// calls; direct calls to Release accept any asset.
func New(addr, beneficiary, admin common.Address, releaseTime uint64, assets ...token.Asset) *Lock {
	res := &Lock{
		addr:        addr,
		beneficiary: beneficiary,
		admin:       admin,
		releaseTime: releaseTime,
		assets:      map[common.Address]token.Asset{},
	}
	for _, asset := range assets {
		res.assets[asset.Address()] = asset
	}
	return res
}

func (l *Lock) Address() common.Address     { return l.addr }
func (l *Lock) Beneficiary() common.Address { return l.beneficiary }
func (l *Lock) Admin() common.Address       { return l.admin }
func (l *Lock) ReleaseTime() uint64         { return l.releaseTime }

// Release transfers the lock's whole balance of asset to the beneficiary.
// Anyone may trigger it after maturity.
func (l *Lock) Release(ctx *state.Context, asset token.Asset) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	if now := ctx.Time(); now < l.releaseTime {
		return fmt.Errorf("%w: releases at %d, now %d", ErrNotMature, l.releaseTime, now)
	}
	amount := asset.BalanceOf(l.addr)
	if amount.IsZero() {
		return ErrNothingToRelease
	}
	if err := token.SendFrom(ctx, asset, l.beneficiary, amount); err != nil {
		return err
	}
	ctx.Emit(Released{Asset: asset.Address(), Beneficiary: l.beneficiary, Amount: amount})
	log.Debug("Lock released", "asset", asset.Address(), "amount", amount)
	return nil
}

// NewReleaseTime postpones the release by extra.
func (l *Lock) NewReleaseTime(ctx *state.Context, extra time.Duration) error {
	if err := ctx.Expect(l.addr); err != nil {
		return err
	}
	if ctx.Caller() != l.admin {
		return fmt.Errorf("%w: %v", ErrUnauthorized, ctx.Caller())
	}
	next := l.releaseTime + uint64(extra/time.Second)
	if next < l.releaseTime {
		return ErrReleaseTimeWraps
	}
	old := l.releaseTime
	l.releaseTime = next
	ctx.Record(func() { l.releaseTime = old })
	ctx.Emit(ReleaseTimeChanged{ReleaseTime: next})
	return nil
}

// Invoke dispatches release(address) and newReleaseTime(uint256) payloads.
func (l *Lock) Invoke(ctx *state.Context, payload []byte) error {
	call, err := ABI.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w on lock", err)
	}
	switch call.Method {
	case "release":
		addr, err := call.Address(0)
		if err != nil {
			return err
		}
		asset, found := l.assets[addr]
		if !found {
			return fmt.Errorf("%w: %v", ErrUnknownAsset, addr)
		}
		return l.Release(ctx, asset)
	case "newReleaseTime":
		seconds, err := call.Uint64(0)
		if err != nil {
			return err
		}
		if seconds > uint64(1<<63-1)/uint64(time.Second) {
			return ErrReleaseTimeWraps
		}
		return l.NewReleaseTime(ctx, time.Duration(seconds)*time.Second)
	}
	return fmt.Errorf("%w: %s on lock", state.ErrUnknownSelector, call.Method)
}
