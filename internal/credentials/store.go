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

package credentials

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/kvstore"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

const didKeyPrefix = "did/"

// Persistence is the durable tier behind the store. kvstore.KVStore
// satisfies it.
type Persistence interface {
	Put(key string, val interface{}) error
	Get(key string, val interface{}) error
	Iterate(prefix string, fn func(key string, raw []byte) error) error
}

// Store is a write-through cache of DID records over a Persistence.
type Store struct {
	mux     sync.RWMutex
	dids    map[string]*messages.DIDRecord
	persist Persistence
	random  io.Reader
	now     func() time.Time
}

func NewStore(persist Persistence) *Store {
	return &Store{
		dids:    make(map[string]*messages.DIDRecord),
		persist: persist,
		random:  rand.Reader,
		now:     time.Now,
	}
}

// Load fills the in-memory map from the durable tier. Entries that do not
// parse are logged and skipped.
func (s *Store) Load(ctx context.Context) error {
	loaded := make(map[string]*messages.DIDRecord)
	err := s.persist.Iterate(didKeyPrefix, func(key string, raw []byte) error {
		var rec messages.DIDRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.L(ctx).Warnf("Skipping malformed DID entry '%s': %s", key, err)
			return nil
		}
		if rec.ID == "" || rec.ID != strings.TrimPrefix(key, didKeyPrefix) || rec.Secret == "" {
			log.L(ctx).Warnf("Skipping malformed DID entry '%s': id or secret mismatch", key)
			return nil
		}
		loaded[rec.ID] = &rec
		return nil
	})
	if err != nil {
		return msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgDIDPersistFailed, "*")
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	for id, rec := range loaded {
		s.dids[id] = rec
	}
	log.L(ctx).Infof("Loaded %d DIDs from the durable store", len(loaded))
	return nil
}

// Create mints a new DID for the credentials. The id and the secret come
// from independent random draws. The record is durable before it becomes
// visible in memory.
func (s *Store) Create(ctx context.Context, creds messages.Credentials) (*messages.DIDRecord, error) {
	idBytes, err := s.randomBytes(ctx)
	if err != nil {
		return nil, err
	}
	secretSeed, err := s.randomBytes(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	rec := &messages.DIDRecord{
		ID:          hexutil.Encode(idBytes),
		Credentials: copyCredentials(creds),
		Secret:      crypto.Keccak256Hash(secretSeed).Hex(),
		Created:     now,
		Updated:     now,
	}

	if err := s.persist.Put(didKeyPrefix+rec.ID, rec); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgDIDPersistFailed, rec.ID)
	}

	s.mux.Lock()
	s.dids[rec.ID] = rec
	s.mux.Unlock()

	log.L(ctx).Infof("Created DID %s", rec.ID)
	return rec, nil
}

// Import adds an existing record, for example one restored from the archive.
// The existence check and the write happen under the store lock, so of two
// concurrent imports of the same id exactly one succeeds.
func (s *Store) Import(ctx context.Context, rec *messages.DIDRecord) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.existsLocked(ctx, rec.ID) {
		return msgs.NewError(ctx, msgs.ErrConflict, msgs.MsgDIDAlreadyExists, rec.ID)
	}
	if err := s.persist.Put(didKeyPrefix+rec.ID, rec); err != nil {
		return msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgDIDPersistFailed, rec.ID)
	}
	s.dids[rec.ID] = rec
	return nil
}

func (s *Store) existsLocked(ctx context.Context, id string) bool {
	if _, ok := s.dids[id]; ok {
		return true
	}
	var stored messages.DIDRecord
	err := s.persist.Get(didKeyPrefix+id, &stored)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		log.L(ctx).Warnf("Durable lookup of DID %s failed: %s", id, err)
	}
	return err == nil && stored.ID == id
}

// Get returns the record and true, or nil and false when the id is unknown
// to both tiers.
func (s *Store) Get(ctx context.Context, id string) (*messages.DIDRecord, bool) {
	s.mux.RLock()
	rec, ok := s.dids[id]
	s.mux.RUnlock()
	if ok {
		return rec, true
	}

	var stored messages.DIDRecord
	err := s.persist.Get(didKeyPrefix+id, &stored)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.L(ctx).Warnf("Durable lookup of DID %s failed: %s", id, err)
		}
		return nil, false
	}
	if stored.ID != id {
		return nil, false
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.dids[id]; ok {
		return existing, true
	}
	s.dids[id] = &stored
	return &stored, true
}

func (s *Store) List(ctx context.Context) []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ids := make([]string, 0, len(s.dids))
	for id := range s.dids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Count() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.dids)
}

func (s *Store) randomBytes(ctx context.Context) ([]byte, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgRandomFailed)
	}
	return b, nil
}

func copyCredentials(creds messages.Credentials) messages.Credentials {
	c := make(messages.Credentials, len(creds))
	for k, v := range creds {
		c[k] = v
	}
	return c
}
