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
	"fmt"
	"slices"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// Snapshot is the persistent form of a ledger. Entries are sorted by
// address so equal ledgers produce equal snapshots.
type Snapshot struct {
	Name          string
	Symbol        string
	Creator       common.Address
	Authority     common.Address
	Stage         uint8
	Source        common.Address
	Paired        common.Address
	TotalShares   *uint256.Int
	ScalingFactor *uint256.Int
	LastEpoch     uint64
	Accounts      []AccountShares
	Allowances    []AllowanceEntry
}

type AccountShares struct {
	Account common.Address
	Shares  *uint256.Int
}

type AllowanceEntry struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// Export captures the current state of the ledger.
func (l *Ledger) Export() *Snapshot {
	res := &Snapshot{
		Name:          l.name,
		Symbol:        l.symbol,
		Creator:       l.creator,
		Authority:     l.authority,
		Stage:         uint8(l.stage),
		Paired:        l.paired,
		TotalShares:   l.TotalShares(),
		ScalingFactor: l.ScalingFactor(),
		LastEpoch:     l.lastEpoch,
	}
	if l.source != nil {
		res.Source = l.source.Address()
	} else {
		res.Source = l.pending
	}

	accounts := maps.Keys(l.shares)
	slices.SortFunc(accounts, common.CompareAddresses)
	for _, account := range accounts {
		shares := l.shares[account]
		if shares.IsZero() {
			continue
		}
		res.Accounts = append(res.Accounts, AccountShares{Account: account, Shares: common.Clone(shares)})
	}

	owners := maps.Keys(l.allowances)
	slices.SortFunc(owners, common.CompareAddresses)
	for _, owner := range owners {
		spenders := maps.Keys(l.allowances[owner])
		slices.SortFunc(spenders, common.CompareAddresses)
		for _, spender := range spenders {
			res.Allowances = append(res.Allowances, AllowanceEntry{
				Owner:   owner,
				Spender: spender,
				Amount:  common.Clone(l.allowances[owner][spender]),
			})
		}
	}
	return res
}

// Restore recreates a ledger at addr from a snapshot. The price source of a
// bound ledger usually observes a pool holding the ledger itself, so it is
// attached afterwards with Reattach.
func Restore(addr common.Address, snapshot *Snapshot) (*Ledger, error) {
	stage := Stage(snapshot.Stage)
	if stage > StageAuthorityBound {
		return nil, fmt.Errorf("invalid ledger stage %d", snapshot.Stage)
	}
	if stage != StageUninitialized && snapshot.Source == common.ZeroAddress {
		return nil, fmt.Errorf("%w: bound snapshot without price source", ErrInvalidBinding)
	}
	if snapshot.ScalingFactor == nil || snapshot.ScalingFactor.IsZero() {
		return nil, fmt.Errorf("invalid scaling factor in ledger snapshot")
	}

	res := &Ledger{
		addr:          addr,
		name:          snapshot.Name,
		symbol:        snapshot.Symbol,
		creator:       snapshot.Creator,
		authority:     snapshot.Authority,
		stage:         stage,
		pending:       snapshot.Source,
		paired:        snapshot.Paired,
		shares:        map[common.Address]*uint256.Int{},
		totalShares:   new(uint256.Int),
		scalingFactor: common.Clone(snapshot.ScalingFactor),
		allowances:    map[common.Address]map[common.Address]*uint256.Int{},
		lastEpoch:     snapshot.LastEpoch,
	}
	for _, entry := range snapshot.Accounts {
		res.shares[entry.Account] = common.Clone(entry.Shares)
		res.totalShares.Add(res.totalShares, common.OrZero(entry.Shares))
	}
	if !res.totalShares.Eq(common.OrZero(snapshot.TotalShares)) {
		return nil, fmt.Errorf("ledger snapshot shares do not add up: %v != %v", res.totalShares, snapshot.TotalShares)
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

// Reattach supplies the price source of a restored ledger. It must be the
// restored counterpart of the source the snapshot was bound to.
func (l *Ledger) Reattach(source PriceSource) error {
	if l.stage == StageUninitialized {
		return ErrNotInitialized
	}
	if l.source != nil {
		return ErrAlreadyInitialized
	}
	if source == nil || source.Address() != l.pending {
		return fmt.Errorf("%w: snapshot is bound to %v", ErrInvalidBinding, l.pending)
	}
	l.source, l.pending = source, common.ZeroAddress
	return nil
}
