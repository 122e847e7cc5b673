// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"

	"github.com/holiman/uint256"
)

const ErrOverflow = ConstError("arithmetic overflow")

// MaxAmount is the largest representable amount. As an allowance it means
// "unlimited".
var MaxAmount = new(uint256.Int).SetAllOne()

// Amount creates a new 256-bit value from a uint64.
func Amount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Pow10 returns 10^exp.
func Pow10(exp uint64) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exp))
}

// Units returns v * 10^decimals, the base-unit representation of v whole
// tokens.
func Units(v uint64, decimals uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), Pow10(decimals))
}

// ParseAmount parses a decimal or 0x-prefixed hex string.
func ParseAmount(s string) (*uint256.Int, error) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		v, err := uint256.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", s, err)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// MulDiv computes floor(x*y/d) using a 512-bit intermediate product. The
// result must fit into 256 bits.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrOverflow)
	}
	res, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return res, nil
}

// MulDivUp is MulDiv rounding towards positive infinity.
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	res, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	var rem uint256.Int
	rem.MulMod(x, y, d)
	if !rem.IsZero() {
		if res.Eq(MaxAmount) {
			return nil, ErrOverflow
		}
		res.AddUint64(res, 1)
	}
	return res, nil
}

// Clone returns an independent copy of v; nil stays nil.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return new(uint256.Int).Set(v)
}

// OrZero returns v or a fresh zero if v is nil.
func OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
