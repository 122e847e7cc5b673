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
	"math"
	"testing"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var quoteAsset = common.Address{0x30}

func TestPolicy_SupplyDelta(t *testing.T) {
	supply := common.Units(1_000_000, 9)
	tests := map[string]struct {
		price    *uint256.Int
		scale    uint64
		delta    *uint256.Int
		positive bool
	}{
		"half the peg contracts by the cap": {
			price: uint256.NewInt(500_000_000),
			delta: common.Units(50_000, 9),
		},
		"rounded half the peg contracts by the cap": {
			price: uint256.NewInt(499_999_999),
			delta: common.Units(50_000, 9),
		},
		"twice the peg expands by the cap": {
			price:    uint256.NewInt(1_999_999_999),
			delta:    common.Units(50_000, 9),
			positive: true,
		},
		"inside the deadband": {
			price: uint256.NewInt(961_538_461),
			delta: new(uint256.Int),
		},
		"on the peg": {
			price:    common.Units(1, 9),
			delta:    new(uint256.Int),
			positive: false,
		},
		"at the deadband edge": {
			price:    uint256.NewInt(1_050_000_000),
			delta:    common.Units(50_000, 9),
			positive: true,
		},
		"scaled rate below the cap": {
			price:    uint256.NewInt(1_060_000_000),
			scale:    5_000,
			delta:    common.Units(30_000, 9),
			positive: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			policy := DefaultPolicy(quoteAsset)
			if test.scale != 0 {
				policy.RateScaleBps = test.scale
			}
			delta, positive, err := policy.SupplyDelta(supply, test.price)
			require.NoError(err)
			require.Equal(test.delta, delta)
			if !delta.IsZero() {
				require.Equal(test.positive, positive)
			}
		})
	}
}

func TestPolicy_Deviation_IsMeasuredInBasisPointsOfPeg(t *testing.T) {
	require := require.New(t)
	policy := DefaultPolicy(quoteAsset)

	dev, above, err := policy.Deviation(uint256.NewInt(961_538_461))
	require.NoError(err)
	require.Equal(uint64(384), dev)
	require.False(above)

	dev, above, err = policy.Deviation(uint256.NewInt(2_000_000_000))
	require.NoError(err)
	require.Equal(uint64(10_000), dev)
	require.True(above)

	dev, above, err = policy.Deviation(common.MaxAmount)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), dev)
	require.True(above)

	policy.Peg = new(uint256.Int)
	_, _, err = policy.Deviation(uint256.NewInt(1))
	require.ErrorIs(err, ErrInvalidPolicy)
}

func TestPolicy_SupplyDelta_CapsExtremePrices(t *testing.T) {
	require := require.New(t)
	policy := DefaultPolicy(quoteAsset)
	supply := common.Units(1_000_000, 9)

	// 2,000,000 quote units per ledger unit exceeds 64 bits of basis points.
	price := common.Units(2_000_000, 18)
	dev, above, err := policy.Deviation(price)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), dev)
	require.True(above)

	for _, price := range []*uint256.Int{price, common.MaxAmount} {
		delta, positive, err := policy.SupplyDelta(supply, price)
		require.NoError(err)
		require.True(positive)
		require.Equal(common.Units(50_000, 9), delta)
	}
}

func TestPolicy_Validate(t *testing.T) {
	require := require.New(t)
	require.NoError(DefaultPolicy(quoteAsset).Validate())

	policy := DefaultPolicy(common.ZeroAddress)
	policy.Peg = nil
	policy.MaxRateBps = bps
	err := policy.Validate()
	require.ErrorIs(err, ErrInvalidPolicy)
	require.ErrorContains(err, "quote asset")
	require.ErrorContains(err, "peg")
	require.ErrorContains(err, "max rate")
}
