// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package synchelper

import (
	"errors"
	"fmt"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/holiman/uint256"
)

const (
	ErrUnauthorized = common.ConstError("caller is not the helper administrator")
	ErrNoSyncEntry  = common.ConstError("destination has no sync entry point")
	ErrUnknownAsset = common.ConstError("asset not tracked by helper")
)

var (
	// ABI lists the methods the helper accepts as payloads.
	ABI = common.MustParseABI(`[
	{"type":"function","name":"transferAndSync","inputs":[{"name":"token","type":"address"},{"name":"dest","type":"address"},{"name":"amount","type":"uint256"},{"name":"sync","type":"bool"}],"outputs":[]}
]`)
	// DestinationABI is the resync entry point expected on destinations.
	DestinationABI = common.MustParseABI(`[
	{"type":"function","name":"sync","inputs":[],"outputs":[]}
]`)
)

// Helper forwards its own balances to a destination and optionally asks the
// destination to resynchronize its cached balances.
type Helper struct {
	addr   common.Address
	admin  common.Address
	assets map[common.Address]token.Asset
}

func New(addr, admin common.Address, assets ...token.Asset) *Helper {
	res := &Helper{addr: addr, admin: admin, assets: map[common.Address]token.Asset{}}
	for _, asset := range assets {
		res.assets[asset.Address()] = asset
	}
	return res
}

func (h *Helper) Address() common.Address { return h.addr }
func (h *Helper) Admin() common.Address   { return h.admin }

// TransferAndSync sends amount of asset to dest and, if sync is set, calls
// dest's sync() entry point. A destination without one fails the whole
// call, including the transfer.
func (h *Helper) TransferAndSync(ctx *state.Context, asset token.Asset, dest common.Address, amount *uint256.Int, sync bool) error {
	if err := ctx.Expect(h.addr); err != nil {
		return err
	}
	if ctx.Caller() != h.admin {
		return fmt.Errorf("%w: %v", ErrUnauthorized, ctx.Caller())
	}
	if err := token.SendFrom(ctx, asset, dest, amount); err != nil {
		return err
	}
	if !sync {
		return nil
	}
	payload, err := DestinationABI.Pack("sync")
	if err != nil {
		return err
	}
	err = ctx.Invoke(dest, payload)
	if errors.Is(err, state.ErrNoSuchContract) || errors.Is(err, state.ErrUnknownSelector) {
		return fmt.Errorf("%w: %v: %w", ErrNoSyncEntry, dest, err)
	}
	return err
}

// Invoke dispatches transferAndSync payloads.
func (h *Helper) Invoke(ctx *state.Context, payload []byte) error {
	call, err := ABI.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w on sync helper", err)
	}
	assetAddr, err := call.Address(0)
	if err != nil {
		return err
	}
	dest, err := call.Address(1)
	if err != nil {
		return err
	}
	amount, err := call.Uint256(2)
	if err != nil {
		return err
	}
	sync, err := call.Bool(3)
	if err != nil {
		return err
	}
	asset, found := h.assets[assetAddr]
	if !found {
		return fmt.Errorf("%w: %v", ErrUnknownAsset, assetAddr)
	}
	return h.TransferAndSync(ctx, asset, dest, amount, sync)
}
