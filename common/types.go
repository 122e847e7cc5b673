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
	"bytes"

	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies an account or a contract.
type Address = geth.Address

// Hash is a 32-byte Keccak digest.
type Hash = geth.Hash

// HashLength is the size of a Hash in bytes.
const HashLength = geth.HashLength

// ZeroAddress is the null address. Relinquished roles are set to it.
var ZeroAddress = Address{}

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// HexToAddress parses a hex string into an address, tolerating a missing
// 0x prefix.
func HexToAddress(s string) Address {
	return geth.HexToAddress(s)
}

// ContractAddress derives the address of the nonce-th contract deployed by
// the given account.
func ContractAddress(deployer Address, nonce uint64) Address {
	return crypto.CreateAddress(deployer, nonce)
}

// BytesToHash converts b to a Hash, keeping the last 32 bytes.
func BytesToHash(b []byte) Hash {
	return geth.BytesToHash(b)
}

// Keccak256 computes the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) Hash {
	return crypto.Keccak256Hash(data...)
}

// CompareAddresses orders addresses by their byte representation.
func CompareAddresses(a, b Address) int {
	return bytes.Compare(a[:], b[:])
}
