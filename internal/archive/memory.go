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

package archive

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func parseCID(ctx context.Context, s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgArchiveInvalidCID, s)
	}
	return c, nil
}

type memoryStore struct {
	mux   sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() ContentStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (m *memoryStore) Add(ctx context.Context, data []byte) (string, error) {
	c, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mux.Lock()
	defer m.mux.Unlock()
	m.blobs[c.String()] = stored
	return c.String(), nil
}

func (m *memoryStore) Cat(ctx context.Context, s string) ([]byte, error) {
	c, err := parseCID(ctx, s)
	if err != nil {
		return nil, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	data, ok := m.blobs[c.String()]
	if !ok {
		return nil, msgs.NewError(ctx, msgs.ErrNotFound, msgs.MsgArchiveNotFound, s)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
