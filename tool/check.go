// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/database/snapshot"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

var Check = cli.Command{
	Action:    addPerformanceDiagnoses(check),
	Name:      "check",
	Usage:     "verifies an archived snapshot and the invariants of the state it holds",
	ArgsUsage: "[<epoch>]",
	Flags:     diagnosticFlags,
}

func check(context *cli.Context) (err error) {
	if context.Args().Len() > 1 {
		return fmt.Errorf("too many arguments")
	}
	n, err := openNode(context)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()

	var (
		s    *protocol.Snapshot
		hash common.Hash
	)
	if context.Args().Len() == 1 {
		epoch, err := strconv.ParseUint(context.Args().Get(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid epoch: %w", err)
		}
		s, hash, err = n.archive.Load(epoch)
		if err != nil {
			return err
		}
	} else if s, hash, err = n.archive.Latest(); err != nil {
		return err
	}

	out := context.App.Writer
	fmt.Fprintf(out, "Checking snapshot of epoch %d (%v) ...\n", s.Orchestrator.Epoch, hash)
	if err := checkSnapshot(s, hash, n.protocol); err != nil {
		return err
	}
	fmt.Fprintf(out, "All checks passed!\n")
	return nil
}

// checkSnapshot restores the snapshot and verifies that it exports to the
// same commitment and that the balances are consistent with the supply.
func checkSnapshot(s *protocol.Snapshot, hash common.Hash, config protocol.Config) error {
	p, err := protocol.Restore(s, config, common.NewManualClock(s.Time))
	if err != nil {
		return fmt.Errorf("snapshot cannot be restored: %w", err)
	}
	var errs []error
	again, err := snapshot.Commitment(p.Export())
	if err != nil {
		errs = append(errs, err)
	} else if again != hash {
		errs = append(errs, fmt.Errorf("restored state commits to %v, archived %v", again, hash))
	}

	l := p.Ledger()
	// Balances round down, so they never add up to more than the supply.
	balances := new(uint256.Int)
	for _, holder := range s.Ledger.Accounts {
		balances.Add(balances, l.BalanceOf(holder.Account))
	}
	if balances.Gt(l.TotalSupply()) {
		errs = append(errs, fmt.Errorf("balances sum to %v, above supply %v", balances, l.TotalSupply()))
	}
	if l.TotalSupply().IsZero() {
		errs = append(errs, fmt.Errorf("total supply is zero"))
	}
	if s.Orchestrator.Epoch != l.LastEpoch() && l.RebaseAuthority() == p.Orchestrator().Address() {
		errs = append(errs, fmt.Errorf("orchestrator at epoch %d, ledger at %d", s.Orchestrator.Epoch, l.LastEpoch()))
	}
	return errors.Join(errs...)
}
