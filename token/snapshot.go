// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package token

import (
	"fmt"
	"slices"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// Snapshot is the persistent form of a fixed-supply ledger.
type Snapshot struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *uint256.Int
	Balances    []Balance
	Allowances  []Allowance
}

type Balance struct {
	Account common.Address
	Amount  *uint256.Int
}

type Allowance struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// Export lists non-zero balances and all allowances in address order.
func (f *Fixed) Export() *Snapshot {
	res := &Snapshot{
		Name:        f.name,
		Symbol:      f.symbol,
		Decimals:    f.decimals,
		TotalSupply: f.TotalSupply(),
	}
	accounts := maps.Keys(f.balances)
	slices.SortFunc(accounts, common.CompareAddresses)
	for _, account := range accounts {
		if f.balances[account].IsZero() {
			continue
		}
		res.Balances = append(res.Balances, Balance{Account: account, Amount: common.Clone(f.balances[account])})
	}
	owners := maps.Keys(f.allowances)
	slices.SortFunc(owners, common.CompareAddresses)
	for _, owner := range owners {
		spenders := maps.Keys(f.allowances[owner])
		slices.SortFunc(spenders, common.CompareAddresses)
		for _, spender := range spenders {
			res.Allowances = append(res.Allowances, Allowance{
				Owner:   owner,
				Spender: spender,
				Amount:  common.Clone(f.allowances[owner][spender]),
			})
		}
	}
	return res
}

// RestoreFixed recreates a fixed-supply ledger from a snapshot.
func RestoreFixed(addr common.Address, snapshot *Snapshot) (*Fixed, error) {
	res := &Fixed{
		addr:        addr,
		name:        snapshot.Name,
		symbol:      snapshot.Symbol,
		decimals:    snapshot.Decimals,
		totalSupply: common.Clone(common.OrZero(snapshot.TotalSupply)),
		balances:    map[common.Address]*uint256.Int{},
		allowances:  map[common.Address]map[common.Address]*uint256.Int{},
	}
	sum := new(uint256.Int)
	for _, entry := range snapshot.Balances {
		res.balances[entry.Account] = common.Clone(entry.Amount)
		sum.Add(sum, common.OrZero(entry.Amount))
	}
	if !sum.Eq(res.totalSupply) {
		return nil, fmt.Errorf("%s snapshot balances do not add up: %v != %v", snapshot.Symbol, sum, res.totalSupply)
	}
	for _, entry := range snapshot.Allowances {
		spenders, found := res.allowances[entry.Owner]
		if !found {
			spenders = map[common.Address]*uint256.Int{}
			res.allowances[entry.Owner] = spenders
		}
		spenders[entry.Spender] = common.Clone(entry.Amount)
	}
	return res, nil
}
