// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package orchestrator

import (
	"errors"
	"fmt"
	"math"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/holiman/uint256"
)

const ErrInvalidPolicy = common.ConstError("invalid supply policy")

// bps is the basis point denominator.
const bps = 10_000

// Policy maps an observed price to a supply change. The price is the
// oracle's quote of ReferenceAmount of QuoteAsset; Peg is the quote at
// which the supply is left alone. Deviations are measured in basis points
// of the peg. Deviations below DeadbandBps are ignored; larger ones change
// the supply by the deviation times RateScaleBps / 10^4, capped at
// MaxRateBps. A price above the peg expands the supply.
type Policy struct {
	QuoteAsset      common.Address
	ReferenceAmount *uint256.Int
	Peg             *uint256.Int
	DeadbandBps     uint64
	RateScaleBps    uint64
	MaxRateBps      uint64
}

// DefaultPolicy pegs one unit of an 18-decimals quote asset to one unit of
// a 9-decimals ledger, with a 5% deadband and a 5% cap per epoch.
func DefaultPolicy(quoteAsset common.Address) Policy {
	return Policy{
		QuoteAsset:      quoteAsset,
		ReferenceAmount: common.Units(1, 18),
		Peg:             common.Units(1, 9),
		DeadbandBps:     500,
		RateScaleBps:    bps,
		MaxRateBps:      500,
	}
}

func (p Policy) Validate() error {
	var errs []error
	if p.QuoteAsset == common.ZeroAddress {
		errs = append(errs, fmt.Errorf("%w: no quote asset", ErrInvalidPolicy))
	}
	if p.ReferenceAmount == nil || p.ReferenceAmount.IsZero() {
		errs = append(errs, fmt.Errorf("%w: reference amount must be positive", ErrInvalidPolicy))
	}
	if p.Peg == nil || p.Peg.IsZero() {
		errs = append(errs, fmt.Errorf("%w: peg must be positive", ErrInvalidPolicy))
	}
	if p.MaxRateBps >= bps {
		errs = append(errs, fmt.Errorf("%w: max rate %d bps would allow wiping the supply", ErrInvalidPolicy, p.MaxRateBps))
	}
	if p.RateScaleBps == 0 {
		errs = append(errs, fmt.Errorf("%w: rate scale must be positive", ErrInvalidPolicy))
	}
	return errors.Join(errs...)
}

// Deviation returns the distance of price from the peg in basis points,
// rounded down, and whether the price is above the peg. Distances beyond
// 64 bits saturate at math.MaxUint64.
func (p Policy) Deviation(price *uint256.Int) (uint64, bool, error) {
	if p.Peg == nil || p.Peg.IsZero() {
		return 0, false, fmt.Errorf("%w: peg must be positive", ErrInvalidPolicy)
	}
	above := price.Gt(p.Peg)
	diff := new(uint256.Int)
	if above {
		diff.Sub(price, p.Peg)
	} else {
		diff.Sub(p.Peg, price)
	}
	dev, err := common.MulDiv(diff, uint256.NewInt(bps), p.Peg)
	if err != nil || !dev.IsUint64() {
		return math.MaxUint64, above, nil
	}
	return dev.Uint64(), above, nil
}

// SupplyDelta computes the supply change for the given supply and price.
// It returns a zero delta inside the deadband.
func (p Policy) SupplyDelta(supply, price *uint256.Int) (*uint256.Int, bool, error) {
	dev, above, err := p.Deviation(price)
	if err != nil {
		return nil, false, err
	}
	if dev < p.DeadbandBps {
		return new(uint256.Int), above, nil
	}
	rate, err := common.MulDiv(uint256.NewInt(dev), uint256.NewInt(p.RateScaleBps), uint256.NewInt(bps))
	if err != nil {
		return nil, false, err
	}
	if rate.GtUint64(p.MaxRateBps) {
		rate.SetUint64(p.MaxRateBps)
	}
	delta, err := common.MulDiv(supply, rate, uint256.NewInt(bps))
	if err != nil {
		return nil, false, err
	}
	return delta, above, nil
}
