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
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/database/snapshot"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var runOnStartFlag = cli.BoolFlag{
	Name:  "run-on-start",
	Usage: "run one keeper cycle before waiting for the schedule",
}

var Run = cli.Command{
	Action: addPerformanceDiagnoses(run),
	Name:   "run",
	Usage:  "resumes the latest archived state, or deploys afresh, and keeps it on the wall clock",
	Flags: append([]cli.Flag{
		&ledgerLiquidityFlag,
		&pairedLiquidityFlag,
		&runOnStartFlag,
	}, diagnosticFlags...),
}

func run(cliContext *cli.Context) (err error) {
	n, err := openNode(cliContext)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()

	p, err := resume(cliContext, n, common.SystemClock{})
	if err != nil {
		return err
	}
	k, err := n.newKeeper(p)
	if err != nil {
		return err
	}
	if cliContext.Bool(runOnStartFlag.Name) {
		k.RunNow()
	}

	ctx, stop := signal.NotifyContext(cliContext.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	k.Start()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return k.Stop(shutdown)
}

// resume restores the latest archived snapshot or, if there is none,
// bootstraps a new deployment and archives its initial state.
func resume(cliContext *cli.Context, n *node, clock common.Clock) (*protocol.Protocol, error) {
	latest, hash, err := n.archive.Latest()
	if err == nil {
		p, err := protocol.Restore(latest, n.protocol, clock)
		if err != nil {
			return nil, err
		}
		p.Host().Subscribe(n.journal)
		log.Info("Resumed archived state", "epoch", latest.Orchestrator.Epoch, "hash", hash)
		return p, nil
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		return nil, err
	}

	amounts, err := parseAmounts(cliContext, ledgerLiquidityFlag, pairedLiquidityFlag)
	if err != nil {
		return nil, err
	}
	p, err := bootstrap(n, clock, amounts[0], amounts[1])
	if err != nil {
		return nil, err
	}
	if _, err := n.archive.Save(p.Export()); err != nil {
		return nil, err
	}
	return p, nil
}
