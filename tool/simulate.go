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
	"io"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

var (
	genesisFlag = cli.Uint64Flag{
		Name:  "genesis",
		Usage: "unix time of the simulated deployment",
		Value: 1_700_000_000,
	}
	daysFlag = cli.IntFlag{
		Name:  "days",
		Usage: "number of simulated days",
		Value: 7,
	}
	ledgerLiquidityFlag = cli.StringFlag{
		Name:  "ledger-liquidity",
		Usage: "ledger units seeded into the pool",
		Value: "5000000000",
	}
	pairedLiquidityFlag = cli.StringFlag{
		Name:  "paired-liquidity",
		Usage: "paired units seeded into the pool",
		Value: "10000000000000000000",
	}
	donatePairedFlag = cli.StringFlag{
		Name:  "donate-paired",
		Usage: "paired units donated to the pool every day, pushing the price up",
		Value: "0",
	}
	donateLedgerFlag = cli.StringFlag{
		Name:  "donate-ledger",
		Usage: "ledger units donated to the pool every day, pushing the price down",
		Value: "0",
	}
)

var Simulate = cli.Command{
	Action: addPerformanceDiagnoses(simulate),
	Name:   "simulate",
	Usage:  "deploys on a simulated clock and runs one keeper cycle per day",
	Flags: append([]cli.Flag{
		&genesisFlag,
		&daysFlag,
		&ledgerLiquidityFlag,
		&pairedLiquidityFlag,
		&donatePairedFlag,
		&donateLedgerFlag,
	}, diagnosticFlags...),
}

func simulate(context *cli.Context) (err error) {
	amounts, err := parseAmounts(context, ledgerLiquidityFlag, pairedLiquidityFlag, donateLedgerFlag, donatePairedFlag)
	if err != nil {
		return err
	}
	n, err := openNode(context)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()

	clock := common.NewManualClock(context.Uint64(genesisFlag.Name))
	p, err := bootstrap(n, clock, amounts[0], amounts[1])
	if err != nil {
		return err
	}
	k, err := n.newKeeper(p)
	if err != nil {
		return err
	}

	out := context.App.Writer
	fmt.Fprintf(out, "%-6s %-12s %-24s %-24s %s\n", "day", "time", "price", "supply", "result")
	for day := 1; day <= context.Int(daysFlag.Name); day++ {
		clock.Advance(24 * time.Hour)
		if !amounts[2].IsZero() {
			if err := p.Donate(false, amounts[2]); err != nil {
				return err
			}
		}
		if !amounts[3].IsZero() {
			if err := p.Donate(true, amounts[3]); err != nil {
				return err
			}
		}
		outcome, err := k.RunNow().Get()
		if err != nil {
			fmt.Fprintf(out, "%-6d %-12d %-24s %-24s %v\n", day, clock.Now(), "-", p.Ledger().TotalSupply().Dec(), err)
			continue
		}
		printOutcome(out, day, clock.Now(), outcome.Price, outcome.TotalSupply, outcome.Delta, outcome.Positive)
	}
	return n.journal.Flush()
}

func printOutcome(out io.Writer, day int, now uint64, price, supply, delta *uint256.Int, positive bool) {
	sign := "-"
	if positive {
		sign = "+"
	}
	fmt.Fprintf(out, "%-6d %-12d %-24s %-24s %s%s\n", day, now, price.Dec(), supply.Dec(), sign, delta.Dec())
}

// bootstrap deploys a fresh protocol, seeds the pool and hands the ledger to
// the orchestrator.
func bootstrap(n *node, clock common.Clock, ledgerLiquidity, pairedLiquidity *uint256.Int) (*protocol.Protocol, error) {
	p, err := protocol.Deploy(n.protocol, clock, n.deployer)
	if err != nil {
		return nil, err
	}
	p.Host().Subscribe(n.journal)
	if _, err := p.AddLiquidity(n.deployer, ledgerLiquidity, pairedLiquidity); err != nil {
		return nil, err
	}
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	if err := p.HandOff(false); err != nil {
		return nil, err
	}
	return p, nil
}

func parseAmounts(context *cli.Context, flags ...cli.StringFlag) ([]*uint256.Int, error) {
	res := make([]*uint256.Int, 0, len(flags))
	for _, flag := range flags {
		v, err := common.ParseAmount(context.String(flag.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flag.Name, err)
		}
		res = append(res, v)
	}
	return res, nil
}
