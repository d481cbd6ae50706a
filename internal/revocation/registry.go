// Copyright © 2023 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/iden3/go-merkletree-sql/v2"
	"github.com/iden3/go-merkletree-sql/v2/db/memory"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

const (
	keyPrefix = "revocation/"
	maxLevels = 64
)

type Persistence interface {
	Put(key string, val interface{}) error
	Iterate(prefix string, fn func(key string, raw []byte) error) error
}

// Registry is the set of revoked proof ids. Members are leaves of a sparse
// merkle tree so the set can be committed to with a single root.
type Registry struct {
	mux     sync.RWMutex
	tree    *merkletree.MerkleTree
	persist Persistence
	count   int
}

func NewRegistry(ctx context.Context, persist Persistence) (*Registry, error) {
	tree, err := merkletree.NewMerkleTree(ctx, memory.NewMemoryStorage(), maxLevels)
	if err != nil {
		return nil, err
	}
	return &Registry{tree: tree, persist: persist}, nil
}

// Load replays the persisted revocations into the tree.
func (r *Registry) Load(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.persist.Iterate(keyPrefix, func(key string, raw []byte) error {
		var rec messages.RevocationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.L(ctx).Warnf("Skipping malformed revocation entry '%s': %s", key, err)
			return nil
		}
		k, err := leafKey(ctx, rec.ProofID)
		if err != nil {
			log.L(ctx).Warnf("Skipping revocation entry '%s': %s", key, err)
			return nil
		}
		err = r.tree.Add(ctx, k, big.NewInt(rec.Timestamp))
		if err != nil && !errors.Is(err, merkletree.ErrEntryIndexAlreadyExists) {
			return err
		}
		if err == nil {
			r.count++
		}
		return nil
	})
}

func (r *Registry) IsRevoked(ctx context.Context, proofID string) (bool, error) {
	k, err := leafKey(ctx, proofID)
	if err != nil {
		return false, err
	}
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.contains(ctx, k)
}

func (r *Registry) contains(ctx context.Context, k *big.Int) (bool, error) {
	_, _, _, err := r.tree.Get(ctx, k)
	if errors.Is(err, merkletree.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgRevocationPersistFailed, k.String())
	}
	return true, nil
}

// Record adds proofID to the set. The boolean result is false when the proof
// was already revoked, in which case the existing set is left untouched.
func (r *Registry) Record(ctx context.Context, didID, proofID string, timestamp int64) (*messages.RevocationRecord, bool, error) {
	k, err := leafKey(ctx, proofID)
	if err != nil {
		return nil, false, err
	}
	proofID = strings.ToLower(proofID)
	r.mux.Lock()
	defer r.mux.Unlock()

	if found, err := r.contains(ctx, k); err != nil || found {
		return nil, false, err
	}
	if err := r.tree.Add(ctx, k, big.NewInt(timestamp)); err != nil {
		return nil, false, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgRevocationPersistFailed, proofID)
	}
	rec := &messages.RevocationRecord{
		DIDID:     didID,
		ProofID:   proofID,
		Timestamp: timestamp,
		Root:      r.tree.Root().Hex(),
	}
	if err := r.persist.Put(keyPrefix+proofID, rec); err != nil {
		if derr := r.tree.Delete(ctx, k); derr != nil {
			log.L(ctx).Errorf("Failed to roll back revocation of %s: %s", proofID, derr)
		}
		return nil, false, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgRevocationPersistFailed, proofID)
	}
	r.count++
	return rec, true, nil
}

func (r *Registry) Root() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.tree.Root().Hex()
}

func (r *Registry) Count() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.count
}

func leafKey(ctx context.Context, proofID string) (*big.Int, error) {
	b, err := hexutil.Decode(proofID)
	if err != nil || len(b) != 32 {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgInvalidProofID, proofID)
	}
	return poseidon.HashBytes(b)
}
