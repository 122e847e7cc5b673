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
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"
)

const (
	ErrMalformedCall = ConstError("malformed call data")
	ErrUnknownMethod = ConstError("unknown selector")
)

// Selector is the 4-byte method identifier heading a call payload.
type Selector [4]byte

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// ABI is the set of methods a contract can be invoked with.
type ABI struct {
	methods abi.ABI
}

// ParseABI parses a JSON ABI definition.
func ParseABI(definition string) (*ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &ABI{methods: parsed}, nil
}

// MustParseABI is ParseABI for package level definitions.
func MustParseABI(definition string) *ABI {
	res, err := ParseABI(definition)
	if err != nil {
		panic(err)
	}
	return res
}

// Selector returns the identifier of the named method.
func (a *ABI) Selector(name string) (Selector, error) {
	method, found := a.methods.Methods[name]
	if !found {
		return Selector{}, fmt.Errorf("%w: no method %q", ErrUnknownMethod, name)
	}
	return Selector(method.ID), nil
}

// Pack encodes a call of the named method. Arguments of type *uint256.Int,
// and uint64 arguments of 256-bit parameters, are converted to the big
// integers the encoder expects.
func (a *ABI) Pack(name string, args ...any) ([]byte, error) {
	method, found := a.methods.Methods[name]
	if !found {
		return nil, fmt.Errorf("%w: no method %q", ErrUnknownMethod, name)
	}
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformedCall, name, len(method.Inputs), len(args))
	}
	converted := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *uint256.Int:
			converted[i] = v.ToBig()
		case uint64:
			if method.Inputs[i].Type.Size > 64 {
				converted[i] = new(big.Int).SetUint64(v)
			} else {
				converted[i] = v
			}
		default:
			converted[i] = arg
		}
	}
	res, err := a.methods.Pack(name, converted...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCall, err)
	}
	return res, nil
}

// Decode resolves the method a payload calls and unpacks its arguments.
func (a *ABI) Decode(payload []byte) (Call, error) {
	if len(payload) < 4 {
		return Call{}, fmt.Errorf("%w: payload of %d bytes has no selector", ErrMalformedCall, len(payload))
	}
	selector := Selector(payload[:4])
	method, err := a.methods.MethodById(selector[:])
	if err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrUnknownMethod, selector)
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return Call{}, fmt.Errorf("%w: %s: %w", ErrMalformedCall, method.Name, err)
	}
	return Call{Method: method.Name, args: args}, nil
}

// Call is a decoded payload.
type Call struct {
	Method string
	args   []any
}

func arg[T any](c Call, i int) (T, error) {
	var zero T
	if i >= len(c.args) {
		return zero, fmt.Errorf("%w: %s has no argument %d", ErrMalformedCall, c.Method, i)
	}
	v, ok := c.args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d of %s is a %T", ErrMalformedCall, i, c.Method, c.args[i])
	}
	return v, nil
}

// Address returns the i-th argument as an address.
func (c Call) Address(i int) (Address, error) {
	return arg[Address](c, i)
}

// Uint256 returns the i-th argument as an unsigned integer.
func (c Call) Uint256(i int) (*uint256.Int, error) {
	v, err := arg[*big.Int](c, i)
	if err != nil {
		return nil, err
	}
	res, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: argument %d of %s out of range", ErrMalformedCall, i, c.Method)
	}
	return res, nil
}

// Uint64 returns the i-th argument and requires it to fit into 64 bits.
func (c Call) Uint64(i int) (uint64, error) {
	v, err := c.Uint256(i)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: argument %d of %s exceeds 64 bits", ErrMalformedCall, i, c.Method)
	}
	return v.Uint64(), nil
}

// Bool returns the i-th argument as a boolean.
func (c Call) Bool(i int) (bool, error) {
	return arg[bool](c, i)
}
