// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/ledger"
	"github.com/MostProtocol/most-mbtc-core/orchestrator"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const ErrInvalid = common.ConstError("invalid configuration")

// Snapshot store backends.
const (
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// DefaultDeployer is the deployer of simulated deployments.
const DefaultDeployer = "0x000000000000000000000000000000000000d0d0"

// CronParser parses the six-field schedules used by the keeper.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all settings of a node. Large amounts are decimal (or 0x
// prefixed hex) strings; durations use Go duration syntax.
type Config struct {
	Deployer string `yaml:"deployer"`
	Ledger   struct {
		Name          string `yaml:"name"`
		Symbol        string `yaml:"symbol"`
		InitialSupply string `yaml:"initial_supply"`
	} `yaml:"ledger"`
	Paired struct {
		Name     string `yaml:"name"`
		Symbol   string `yaml:"symbol"`
		Decimals uint8  `yaml:"decimals"`
		Supply   string `yaml:"supply"`
	} `yaml:"paired"`
	Oracle struct {
		Period time.Duration `yaml:"period"`
	} `yaml:"oracle"`
	Orchestrator struct {
		MinRebaseInterval time.Duration `yaml:"min_rebase_interval"`
		ReferenceAmount   string        `yaml:"reference_amount"`
		Peg               string        `yaml:"peg"`
		DeadbandBps       *uint64       `yaml:"deadband_bps"`
		RateScaleBps      uint64        `yaml:"rate_scale_bps"`
		MaxRateBps        uint64        `yaml:"max_rate_bps"`
	} `yaml:"orchestrator"`
	Keeper struct {
		UpdateCron string `yaml:"update_cron"`
		RebaseCron string `yaml:"rebase_cron"`
		Caller     string `yaml:"caller"`
	} `yaml:"keeper"`
	Storage struct {
		Backend      string `yaml:"backend"`
		SnapshotPath string `yaml:"snapshot_path"`
		JournalPath  string `yaml:"journal_path"`
	} `yaml:"storage"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	log.Debug("Configuration loaded", "path", path, "found", len(data) > 0)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	texts := map[string]*string{
		"MOST_DEPLOYER":        &c.Deployer,
		"MOST_KEEPER_CALLER":   &c.Keeper.Caller,
		"MOST_UPDATE_CRON":     &c.Keeper.UpdateCron,
		"MOST_REBASE_CRON":     &c.Keeper.RebaseCron,
		"MOST_STORAGE_BACKEND": &c.Storage.Backend,
		"MOST_SNAPSHOT_PATH":   &c.Storage.SnapshotPath,
		"MOST_JOURNAL_PATH":    &c.Storage.JournalPath,
		"MOST_PEG":             &c.Orchestrator.Peg,
	}
	for name, field := range texts {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	durations := map[string]*time.Duration{
		"MOST_ORACLE_PERIOD":       &c.Oracle.Period,
		"MOST_MIN_REBASE_INTERVAL": &c.Orchestrator.MinRebaseInterval,
	}
	for name, field := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
		}
		*field = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := protocol.DefaultConfig()
	setString := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	setString(&c.Deployer, DefaultDeployer)
	setString(&c.Ledger.Name, def.Ledger.Name)
	setString(&c.Ledger.Symbol, def.Ledger.Symbol)
	setString(&c.Ledger.InitialSupply, def.Ledger.InitialSupply.Dec())
	setString(&c.Paired.Name, def.Paired.Name)
	setString(&c.Paired.Symbol, def.Paired.Symbol)
	if c.Paired.Decimals == 0 {
		c.Paired.Decimals = def.Paired.Decimals
	}
	setString(&c.Paired.Supply, def.Paired.Supply.Dec())
	if c.Oracle.Period == 0 {
		c.Oracle.Period = def.OraclePeriod
	}

	policy := def.Orchestrator.Policy
	if c.Orchestrator.MinRebaseInterval == 0 {
		c.Orchestrator.MinRebaseInterval = def.Orchestrator.MinRebaseInterval
	}
	setString(&c.Orchestrator.ReferenceAmount, policy.ReferenceAmount.Dec())
	setString(&c.Orchestrator.Peg, policy.Peg.Dec())
	if c.Orchestrator.DeadbandBps == nil {
		deadband := policy.DeadbandBps
		c.Orchestrator.DeadbandBps = &deadband
	}
	if c.Orchestrator.RateScaleBps == 0 {
		c.Orchestrator.RateScaleBps = policy.RateScaleBps
	}
	if c.Orchestrator.MaxRateBps == 0 {
		c.Orchestrator.MaxRateBps = policy.MaxRateBps
	}

	setString(&c.Keeper.UpdateCron, "@every 1h")
	setString(&c.Keeper.RebaseCron, "0 5 0 * * *")
	setString(&c.Storage.Backend, BackendLevelDB)
	setString(&c.Storage.SnapshotPath, "data/snapshots")
}

// Validate checks all settings and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}
	if _, err := c.DeployerAddress(); err != nil {
		errs = append(errs, err)
	}
	if c.Keeper.Caller != "" && !gethcommon.IsHexAddress(c.Keeper.Caller) {
		invalid("keeper.caller %q is not an address", c.Keeper.Caller)
	}
	for name, spec := range map[string]string{"keeper.update_cron": c.Keeper.UpdateCron, "keeper.rebase_cron": c.Keeper.RebaseCron} {
		if _, err := CronParser.Parse(spec); err != nil {
			invalid("%s %q: %v", name, spec, err)
		}
	}
	switch c.Storage.Backend {
	case BackendLevelDB:
		if c.Storage.SnapshotPath == "" {
			invalid("storage.snapshot_path is required for %s", BackendLevelDB)
		}
	case BackendMemory:
	default:
		invalid("unknown storage.backend %q", c.Storage.Backend)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	config, err := c.Protocol()
	if err != nil {
		return err
	}
	return config.Validate()
}

// DeployerAddress returns the account deploying the contracts.
func (c *Config) DeployerAddress() (common.Address, error) {
	if !gethcommon.IsHexAddress(c.Deployer) {
		return common.Address{}, fmt.Errorf("%w: deployer %q is not an address", ErrInvalid, c.Deployer)
	}
	res := common.HexToAddress(c.Deployer)
	if res == common.ZeroAddress {
		return common.Address{}, fmt.Errorf("%w: deployer must not be the zero address", ErrInvalid)
	}
	return res, nil
}

// KeeperAddress returns the account the keeper acts as, the deployer by
// default.
func (c *Config) KeeperAddress() (common.Address, error) {
	if c.Keeper.Caller == "" {
		return c.DeployerAddress()
	}
	if !gethcommon.IsHexAddress(c.Keeper.Caller) {
		return common.Address{}, fmt.Errorf("%w: keeper caller %q is not an address", ErrInvalid, c.Keeper.Caller)
	}
	return common.HexToAddress(c.Keeper.Caller), nil
}

// Protocol converts the settings into deployment parameters.
func (c *Config) Protocol() (protocol.Config, error) {
	res := protocol.DefaultConfig()
	var errs []error
	amount := func(name, value string) *uint256.Int {
		v, err := common.ParseAmount(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, name, err))
		}
		return v
	}

	res.Ledger = ledger.Config{
		Name:          c.Ledger.Name,
		Symbol:        c.Ledger.Symbol,
		InitialSupply: amount("ledger.initial_supply", c.Ledger.InitialSupply),
	}
	res.Paired = protocol.PairedConfig{
		Name:     c.Paired.Name,
		Symbol:   c.Paired.Symbol,
		Decimals: c.Paired.Decimals,
		Supply:   amount("paired.supply", c.Paired.Supply),
	}
	res.OraclePeriod = c.Oracle.Period
	deadband := res.Orchestrator.Policy.DeadbandBps
	if c.Orchestrator.DeadbandBps != nil {
		deadband = *c.Orchestrator.DeadbandBps
	}
	res.Orchestrator = orchestrator.Config{
		MinRebaseInterval: c.Orchestrator.MinRebaseInterval,
		Policy: orchestrator.Policy{
			ReferenceAmount: amount("orchestrator.reference_amount", c.Orchestrator.ReferenceAmount),
			Peg:             amount("orchestrator.peg", c.Orchestrator.Peg),
			DeadbandBps:     deadband,
			RateScaleBps:    c.Orchestrator.RateScaleBps,
			MaxRateBps:      c.Orchestrator.MaxRateBps,
		},
	}
	if len(errs) > 0 {
		return protocol.Config{}, errors.Join(errs...)
	}
	return res, nil
}
