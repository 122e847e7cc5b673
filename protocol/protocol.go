// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package protocol

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/ledger"
	"github.com/MostProtocol/most-mbtc-core/oracle"
	"github.com/MostProtocol/most-mbtc-core/orchestrator"
	"github.com/MostProtocol/most-mbtc-core/pool"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/MostProtocol/most-mbtc-core/synchelper"
	"github.com/MostProtocol/most-mbtc-core/timelock"
	"github.com/MostProtocol/most-mbtc-core/token"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	ErrNoDeployer    = common.ConstError("deployer address must be set")
	ErrInvalidConfig = common.ConstError("invalid protocol configuration")
)

// Deployment nonces of the singleton contracts. Locks use the nonces after
// them.
const (
	nonceLedger uint64 = iota
	noncePaired
	noncePool
	nonceOracle
	nonceOrchestrator
	nonceHelper
	firstLockNonce
)

// PairedConfig describes the fixed-supply asset the ledger is paired with.
type PairedConfig struct {
	Name     string
	Symbol   string
	Decimals uint8
	Supply   *uint256.Int
}

// Config collects the deployment parameters of all contracts. The quote
// asset of the policy is always the paired asset and is set on deployment.
type Config struct {
	Ledger       ledger.Config
	Paired       PairedConfig
	OraclePeriod time.Duration
	Orchestrator orchestrator.Config
}

// DefaultConfig returns the parameters of the production deployment.
func DefaultConfig() Config {
	return Config{
		Ledger: ledger.Config{
			Name:          "MOST",
			Symbol:        "MOST",
			InitialSupply: common.Units(1_000_000, ledger.Decimals),
		},
		Paired: PairedConfig{
			Name:     "Wrapped BTC",
			Symbol:   "mBTC",
			Decimals: 18,
			Supply:   common.Units(1_000_000, 18),
		},
		OraclePeriod: oracle.DefaultPeriod,
		Orchestrator: orchestrator.Config{
			MinRebaseInterval: orchestrator.DefaultMinRebaseInterval,
			Policy:            orchestrator.DefaultPolicy(common.ZeroAddress),
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Ledger.InitialSupply == nil || c.Ledger.InitialSupply.IsZero() {
		errs = append(errs, fmt.Errorf("%w: ledger supply must be positive", ErrInvalidConfig))
	}
	if c.Paired.Supply == nil || c.Paired.Supply.IsZero() {
		errs = append(errs, fmt.Errorf("%w: paired supply must be positive", ErrInvalidConfig))
	}
	if c.OraclePeriod < time.Second {
		errs = append(errs, fmt.Errorf("%w: oracle period %v", ErrInvalidConfig, c.OraclePeriod))
	}
	orchestratorConfig := c.Orchestrator
	// Any non-zero address passes; the real one is only known on deployment.
	orchestratorConfig.Policy.QuoteAsset = common.Address{1}
	if err := orchestratorConfig.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Protocol is a deployed set of contracts on a private host: the elastic
// ledger, its paired asset, the pool between them, the oracle observing the
// pool, the orchestrator driving the ledger and a sync helper. Contract
// addresses are derived from the deployer address.
type Protocol struct {
	host     *state.Host
	deployer common.Address
	config   Config

	paired       *token.Fixed
	ledger       *ledger.Ledger
	pool         *pool.Pool
	oracle       *oracle.Oracle
	orchestrator *orchestrator.Orchestrator
	helper       *synchelper.Helper

	mu    sync.Mutex // protects locks
	locks []*timelock.Lock
}

// Deploy creates all contracts. The deployer holds the initial supply of
// both assets and all administrative roles.
func Deploy(config Config, clock common.Clock, deployer common.Address) (*Protocol, error) {
	if deployer == common.ZeroAddress {
		return nil, ErrNoDeployer
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Protocol{host: state.NewHost(clock), deployer: deployer, config: config}

	p.paired = token.NewFixed(p.addressOf(noncePaired), config.Paired.Name, config.Paired.Symbol,
		config.Paired.Decimals, config.Paired.Supply, deployer)
	var err error
	p.ledger, err = ledger.New(p.addressOf(nonceLedger), config.Ledger, deployer)
	if err != nil {
		return nil, err
	}
	if err := p.wire(); err != nil {
		return nil, err
	}
	log.Info("Protocol deployed", "deployer", deployer, "ledger", p.ledger.Address(),
		"paired", p.paired.Address(), "pool", p.pool.Address(), "orchestrator", p.orchestrator.Address())
	return p, nil
}

// wire creates the contracts depending on the two assets and registers
// everything with the host.
func (p *Protocol) wire() error {
	var err error
	if p.pool == nil {
		p.pool, err = pool.New(p.addressOf(noncePool), p.ledger, p.paired)
		if err != nil {
			return err
		}
	}
	if p.oracle == nil {
		p.oracle, err = oracle.New(p.addressOf(nonceOracle), p.pool, p.config.OraclePeriod)
		if err != nil {
			return err
		}
	}
	if p.orchestrator == nil {
		p.orchestrator, err = orchestrator.New(p.addressOf(nonceOrchestrator), p.deployer, p.ledger, p.oracle, p.orchestratorConfig())
		if err != nil {
			return err
		}
	}
	p.helper = synchelper.New(p.addressOf(nonceHelper), p.deployer, p.ledger, p.paired)

	contracts := []state.Contract{p.ledger, p.paired, p.pool, p.oracle, p.orchestrator, p.helper}
	for _, lock := range p.locks {
		contracts = append(contracts, lock)
	}
	for _, contract := range contracts {
		if err := p.host.Register(contract); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) orchestratorConfig() orchestrator.Config {
	res := p.config.Orchestrator
	res.Policy.QuoteAsset = p.paired.Address()
	return res
}

func (p *Protocol) addressOf(nonce uint64) common.Address {
	return common.ContractAddress(p.deployer, nonce)
}

func (p *Protocol) Host() *state.Host                        { return p.host }
func (p *Protocol) Deployer() common.Address                 { return p.deployer }
func (p *Protocol) Config() Config                           { return p.config }
func (p *Protocol) Paired() *token.Fixed                     { return p.paired }
func (p *Protocol) Ledger() *ledger.Ledger                   { return p.ledger }
func (p *Protocol) Pool() *pool.Pool                         { return p.pool }
func (p *Protocol) Oracle() *oracle.Oracle                   { return p.oracle }
func (p *Protocol) Orchestrator() *orchestrator.Orchestrator { return p.orchestrator }
func (p *Protocol) Helper() *synchelper.Helper               { return p.helper }

// Locks returns the deployed time locks in deployment order.
func (p *Protocol) Locks() []*timelock.Lock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.locks)
}

// AddLiquidity sends the given amounts of both assets from provider to the
// pool and mints liquidity to provider, atomically.
func (p *Protocol) AddLiquidity(provider common.Address, amountLedger, amountPaired *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	_, err := p.host.Execute(provider, provider, func(ctx *state.Context) error {
		if err := token.SendFrom(ctx, p.ledger, p.pool.Address(), amountLedger); err != nil {
			return err
		}
		if err := token.SendFrom(ctx, p.paired, p.pool.Address(), amountPaired); err != nil {
			return err
		}
		return ctx.Call(p.pool.Address(), func(sub *state.Context) error {
			var err error
			minted, err = p.pool.Mint(sub, provider)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add liquidity: %w", err)
	}
	return minted, nil
}

// Initialize binds the ledger to the oracle and the paired asset. The pool
// must hold liquidity for the oracle to be primed.
func (p *Protocol) Initialize() error {
	_, err := p.host.Execute(p.deployer, p.ledger.Address(), func(ctx *state.Context) error {
		return p.ledger.Initialize(ctx, p.oracle, p.paired.Address())
	})
	return err
}

// HandOff makes the orchestrator the ledger's rebase authority and registers
// the pool's sync() as a batched call, so the pool follows every rebase. If
// relinquish is set the deployer gives up the creator role.
func (p *Protocol) HandOff(relinquish bool) error {
	_, err := p.host.Execute(p.deployer, p.deployer, func(ctx *state.Context) error {
		err := ctx.Call(p.ledger.Address(), func(sub *state.Context) error {
			return p.ledger.SetRebaseAuthority(sub, p.orchestrator.Address())
		})
		if err != nil {
			return err
		}
		resync, err := pool.ABI.Pack("sync")
		if err != nil {
			return err
		}
		err = ctx.Call(p.orchestrator.Address(), func(sub *state.Context) error {
			return p.orchestrator.AddTransaction(sub, p.pool.Address(), resync)
		})
		if err != nil {
			return err
		}
		if !relinquish {
			return nil
		}
		return ctx.Call(p.ledger.Address(), p.ledger.RelinquishCreator)
	})
	return err
}

// Transfer moves ledger units between accounts.
func (p *Protocol) Transfer(from, to common.Address, amount *uint256.Int) error {
	_, err := p.host.Execute(from, p.ledger.Address(), func(ctx *state.Context) error {
		return p.ledger.Transfer(ctx, to, amount)
	})
	return err
}

// UpdateOracle refreshes the oracle's averaging window.
func (p *Protocol) UpdateOracle(caller common.Address) (*state.Receipt, error) {
	return p.host.Execute(caller, p.oracle.Address(), p.oracle.Update)
}

// Rebase runs one epoch transition on behalf of caller.
func (p *Protocol) Rebase(caller common.Address) (*orchestrator.Outcome, *state.Receipt, error) {
	var outcome *orchestrator.Outcome
	receipt, err := p.host.Execute(caller, p.orchestrator.Address(), func(ctx *state.Context) error {
		var err error
		outcome, err = p.orchestrator.Rebase(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return outcome, receipt, nil
}

// Donate moves amount of the deployer's ledger units, or of the paired
// asset if paired is set, into the pool through the sync helper, shifting the
// pool price without minting liquidity.
func (p *Protocol) Donate(paired bool, amount *uint256.Int) error {
	var asset token.Asset = p.ledger
	if paired {
		asset = p.paired
	}
	_, err := p.host.Execute(p.deployer, p.deployer, func(ctx *state.Context) error {
		if err := token.SendFrom(ctx, asset, p.helper.Address(), amount); err != nil {
			return err
		}
		return ctx.Call(p.helper.Address(), func(sub *state.Context) error {
			return p.helper.TransferAndSync(sub, asset, p.pool.Address(), amount, true)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to donate to pool: %w", err)
	}
	return nil
}

// DeployLock creates a time lock for both assets, administered by the
// deployer.
func (p *Protocol) DeployLock(beneficiary common.Address, releaseTime uint64) (*timelock.Lock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nonce := firstLockNonce + uint64(len(p.locks))
	lock := timelock.New(p.addressOf(nonce), beneficiary, p.deployer, releaseTime, p.ledger, p.paired)
	if err := p.host.Register(lock); err != nil {
		return nil, err
	}
	p.locks = append(p.locks, lock)
	return lock, nil
}
