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

package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrNotFound = errors.New("key not found")

// KVStore keeps JSON encoded values under string keys.
type KVStore interface {
	Put(key string, val interface{}) error
	Get(key string, val interface{}) error
	// Iterate calls fn for every key with the given prefix, in key order,
	// with the raw JSON value.
	Iterate(prefix string, fn func(key string, raw []byte) error) error
	Close() error
}

type levelDBKeyValueStore struct {
	path string
	db   *leveldb.DB
}

// NewKVStore opens a LevelDB database at path. An empty path opens a
// volatile in-memory database.
func NewKVStore(path string) (kv KVStore, err error) {
	var db *leveldb.DB
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, err
	}

	kv = &levelDBKeyValueStore{
		path,
		db,
	}
	return
}

func (k *levelDBKeyValueStore) Put(key string, val interface{}) error {
	if key == "" {
		return fmt.Errorf("key cannot be blank")
	}
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return k.db.Put([]byte(key), b, nil)
}

func (k *levelDBKeyValueStore) Get(key string, val interface{}) error {
	b, err := k.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, val)
}

func (k *levelDBKeyValueStore) Iterate(prefix string, fn func(key string, raw []byte) error) error {
	iter := k.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		// the iterator reuses its buffers between calls
		raw := make([]byte, len(iter.Value()))
		copy(raw, iter.Value())
		if err := fn(string(iter.Key()), raw); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (k *levelDBKeyValueStore) Close() error {
	return k.db.Close()
}
