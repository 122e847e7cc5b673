// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/protocol"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"golang.org/x/crypto/sha3"
)

const ErrCorrupted = common.ConstError("snapshot does not match its commitment")

var (
	latestKey   = []byte("latest")
	epochPrefix = []byte("epoch/")
)

// Archive keeps one protocol snapshot per epoch. Entries are RLP encoded,
// snappy compressed and prefixed with the Keccak-256 commitment of the
// uncompressed encoding, which is verified on every load.
type Archive struct {
	store Store
}

// NewArchive wraps the given store.
func NewArchive(store Store) *Archive {
	return &Archive{store: store}
}

// OpenLevelDB opens an archive persisted in the given directory.
func OpenLevelDB(path string) (*Archive, error) {
	store, err := newLevelDbStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return NewArchive(store), nil
}

// OpenMemory creates an archive that lives as long as the process.
func OpenMemory() *Archive {
	return NewArchive(newMemoryDbStore())
}

// Commitment returns the Keccak-256 hash of the snapshot's RLP encoding.
func Commitment(s *protocol.Snapshot) (common.Hash, error) {
	data, err := rlp.EncodeToBytes(s)
	if err != nil {
		return common.Hash{}, err
	}
	return hashOf(data), nil
}

// Save stores the snapshot under the epoch of its orchestrator and marks it
// as the latest one.
func (a *Archive) Save(s *protocol.Snapshot) (common.Hash, error) {
	if s.Orchestrator == nil {
		return common.Hash{}, fmt.Errorf("snapshot has no orchestrator state")
	}
	data, err := rlp.EncodeToBytes(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	hash := hashOf(data)
	entry := append(hash.Bytes(), snappy.Encode(nil, data)...)

	key := epochKey(s.Orchestrator.Epoch)
	if err := a.store.Set(key, entry); err != nil {
		return common.Hash{}, err
	}
	if err := a.store.Set(latestKey, key); err != nil {
		return common.Hash{}, err
	}
	log.Debug("Snapshot saved", "epoch", s.Orchestrator.Epoch, "hash", hash, "size", len(entry))
	return hash, nil
}

// Load returns the snapshot of the given epoch and its commitment.
func (a *Archive) Load(epoch uint64) (*protocol.Snapshot, common.Hash, error) {
	return a.load(epochKey(epoch))
}

// Latest returns the most recently saved snapshot.
func (a *Archive) Latest() (*protocol.Snapshot, common.Hash, error) {
	key, err := a.store.Get(latestKey)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return a.load(key)
}

func (a *Archive) Close() error {
	return a.store.Close()
}

func (a *Archive) load(key []byte) (*protocol.Snapshot, common.Hash, error) {
	entry, err := a.store.Get(key)
	if err != nil {
		return nil, common.Hash{}, err
	}
	if len(entry) < common.HashLength {
		return nil, common.Hash{}, fmt.Errorf("%w: entry of %d bytes", ErrCorrupted, len(entry))
	}
	want := common.BytesToHash(entry[:common.HashLength])
	data, err := snappy.Decode(nil, entry[common.HashLength:])
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	if got := hashOf(data); got != want {
		return nil, common.Hash{}, fmt.Errorf("%w: got %v, want %v", ErrCorrupted, got, want)
	}
	res := new(protocol.Snapshot)
	if err := rlp.DecodeBytes(data, res); err != nil {
		return nil, common.Hash{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return res, want, nil
}

func epochKey(epoch uint64) []byte {
	return binary.BigEndian.AppendUint64(bytes.Clone(epochPrefix), epoch)
}

func hashOf(data []byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	return common.BytesToHash(hasher.Sum(nil))
}
