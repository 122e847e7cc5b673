// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pool

import (
	"fmt"
	"slices"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

type Snapshot struct {
	Token0               common.Address
	Token1               common.Address
	Reserve0             *uint256.Int
	Reserve1             *uint256.Int
	BlockTimestampLast   uint32
	Price0CumulativeLast *uint256.Int
	Price1CumulativeLast *uint256.Int
	Providers            []Provider
}

type Provider struct {
	Account   common.Address
	Liquidity *uint256.Int
}

func (p *Pool) Export() *Snapshot {
	res := &Snapshot{
		Token0:               p.Token0(),
		Token1:               p.Token1(),
		Reserve0:             common.Clone(p.reserve0),
		Reserve1:             common.Clone(p.reserve1),
		BlockTimestampLast:   p.blockTimestampLast,
		Price0CumulativeLast: common.Clone(p.price0CumulativeLast),
		Price1CumulativeLast: common.Clone(p.price1CumulativeLast),
	}
	accounts := maps.Keys(p.liquidity)
	slices.SortFunc(accounts, common.CompareAddresses)
	for _, account := range accounts {
		res.Providers = append(res.Providers, Provider{Account: account, Liquidity: common.Clone(p.liquidity[account])})
	}
	return res
}

// Restore recreates a pool from a snapshot. The assets may be passed in any
// order but must match the snapshot's tokens.
func Restore(addr common.Address, snapshot *Snapshot, a, b token.Asset) (*Pool, error) {
	res, err := New(addr, a, b)
	if err != nil {
		return nil, err
	}
	if res.Token0() != snapshot.Token0 || res.Token1() != snapshot.Token1 {
		return nil, fmt.Errorf("pool snapshot is for %v/%v", snapshot.Token0, snapshot.Token1)
	}
	res.reserve0 = common.Clone(common.OrZero(snapshot.Reserve0))
	res.reserve1 = common.Clone(common.OrZero(snapshot.Reserve1))
	res.blockTimestampLast = snapshot.BlockTimestampLast
	res.price0CumulativeLast = common.Clone(common.OrZero(snapshot.Price0CumulativeLast))
	res.price1CumulativeLast = common.Clone(common.OrZero(snapshot.Price1CumulativeLast))
	for _, provider := range snapshot.Providers {
		res.liquidity[provider.Account] = common.Clone(provider.Liquidity)
		res.totalLiquidity.Add(res.totalLiquidity, common.OrZero(provider.Liquidity))
	}
	return res, nil
}
