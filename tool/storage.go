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
	"github.com/MostProtocol/most-mbtc-core/config"
	"github.com/MostProtocol/most-mbtc-core/database/journal"
	"github.com/MostProtocol/most-mbtc-core/database/snapshot"
	"github.com/MostProtocol/most-mbtc-core/keeper"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/urfave/cli/v2"
)

// node bundles everything a command needs, opened from the configuration.
type node struct {
	config   *config.Config
	protocol protocol.Config
	deployer common.Address
	keeper   keeper.Config
	archive  *snapshot.Archive
	journal  journal.Journal
}

func openNode(context *cli.Context) (*node, error) {
	cfg, err := config.Load(context.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &node{config: cfg}
	if res.protocol, err = cfg.Protocol(); err != nil {
		return nil, err
	}
	if res.deployer, err = cfg.DeployerAddress(); err != nil {
		return nil, err
	}
	caller, err := cfg.KeeperAddress()
	if err != nil {
		return nil, err
	}
	res.keeper = keeper.Config{
		UpdateCron: cfg.Keeper.UpdateCron,
		RebaseCron: cfg.Keeper.RebaseCron,
		Caller:     caller,
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		res.archive = snapshot.OpenMemory()
	default:
		if res.archive, err = snapshot.OpenLevelDB(cfg.Storage.SnapshotPath); err != nil {
			return nil, err
		}
	}
	res.journal = journal.NewNoop()
	if cfg.Storage.JournalPath != "" {
		if res.journal, err = journal.OpenSQLite(cfg.Storage.JournalPath); err != nil {
			return nil, errors.Join(err, res.archive.Close())
		}
	}
	return res, nil
}

func (n *node) newKeeper(p *protocol.Protocol) (*keeper.Keeper, error) {
	return keeper.New(p, n.archive, n.keeper, config.CronParser)
}

func (n *node) Close() error {
	var errs []error
	if err := n.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
	}
	if err := n.archive.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close archive: %w", err))
	}
	return errors.Join(errs...)
}
