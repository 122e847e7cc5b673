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

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/database/journal"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

var (
	eventFlag = cli.StringFlag{
		Name:  "event",
		Usage: "only list events of this name, e.g. RebaseCompleted",
	}
	contractFlag = cli.StringFlag{
		Name:  "contract",
		Usage: "only list events emitted by this address",
	}
	sinceFlag = cli.Uint64Flag{
		Name:  "since",
		Usage: "only list events at or after this unix time",
	}
	limitFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of events listed, 0 for all",
		Value: 100,
	}
)

var Journal = cli.Command{
	Action: journalList,
	Name:   "journal",
	Usage:  "lists journaled contract events",
	Flags:  []cli.Flag{&eventFlag, &contractFlag, &sinceFlag, &limitFlag},
}

func journalList(context *cli.Context) (err error) {
	n, err := openNode(context)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()
	if n.config.Storage.JournalPath == "" {
		return fmt.Errorf("no journal configured, set storage.journal_path")
	}

	filter := journal.Filter{
		Name:  context.String(eventFlag.Name),
		Since: context.Uint64(sinceFlag.Name),
		Limit: context.Int(limitFlag.Name),
	}
	if addr := context.String(contractFlag.Name); addr != "" {
		if !gethcommon.IsHexAddress(addr) {
			return fmt.Errorf("invalid contract address %q", addr)
		}
		filter.Contract = common.HexToAddress(addr)
	}
	entries, err := n.journal.Query(filter)
	if err != nil {
		return err
	}
	out := context.App.Writer
	for _, entry := range entries {
		fmt.Fprintf(out, "%6d %d %v %-24s %s\n", entry.Seq, entry.Time, entry.Contract, entry.Name, entry.Data)
	}
	return nil
}
