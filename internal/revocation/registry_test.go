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
	"errors"
	"strings"
	"testing"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/kvstore"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDID    = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testProof1 = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testProof2 = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestRegistry(t *testing.T) (*Registry, kvstore.KVStore) {
	kv, err := kvstore.NewKVStore("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	r, err := NewRegistry(context.Background(), kv)
	require.NoError(t, err)
	return r, kv
}

func TestRecordAndIsRevoked(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	emptyRoot := r.Root()

	revoked, err := r.IsRevoked(ctx, testProof1)
	require.NoError(t, err)
	assert.False(t, revoked)

	rec, added, err := r.Record(ctx, testDID, testProof1, 1000)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, testDID, rec.DIDID)
	assert.Equal(t, r.Root(), rec.Root)
	assert.NotEqual(t, emptyRoot, rec.Root)

	revoked, err = r.IsRevoked(ctx, testProof1)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, testProof2)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 1, r.Count())
}

func TestRecordTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	_, added, err := r.Record(ctx, testDID, testProof1, 1000)
	require.NoError(t, err)
	require.True(t, added)
	root := r.Root()

	rec, added, err := r.Record(ctx, testDID, testProof1, 2000)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Nil(t, rec)
	assert.Equal(t, root, r.Root())
	assert.Equal(t, 1, r.Count())
}

func TestRecordCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	upper := "0x" + strings.ToUpper(testProof2[2:])
	_, added, err := r.Record(ctx, testDID, upper, 1000)
	require.NoError(t, err)
	assert.True(t, added)

	revoked, err := r.IsRevoked(ctx, testProof2)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMalformedProofID(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	for _, id := range []string{"", "0x1234", "aaaa", "0x" + strings.Repeat("zz", 32)} {
		_, err := r.IsRevoked(ctx, id)
		assert.ErrorIs(t, err, msgs.ErrInvalidInput, id)
		_, _, err = r.Record(ctx, testDID, id, 1)
		assert.ErrorIs(t, err, msgs.ErrInvalidInput, id)
	}
}

func TestLoadRestoresTree(t *testing.T) {
	ctx := context.Background()
	r, kv := newTestRegistry(t)
	_, _, err := r.Record(ctx, testDID, testProof1, 1000)
	require.NoError(t, err)
	_, _, err = r.Record(ctx, testDID, testProof2, 1001)
	require.NoError(t, err)
	require.NoError(t, kv.Put(keyPrefix+"junk", "not a record"))

	reloaded, err := NewRegistry(ctx, kv)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, r.Root(), reloaded.Root())
	assert.Equal(t, 2, reloaded.Count())

	revoked, err := reloaded.IsRevoked(ctx, testProof2)
	require.NoError(t, err)
	assert.True(t, revoked)
}

type failingPersistence struct{}

func (failingPersistence) Put(key string, val interface{}) error {
	return errors.New("disk full")
}

func (failingPersistence) Iterate(prefix string, fn func(key string, raw []byte) error) error {
	return nil
}

func TestRecordPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	r, err := NewRegistry(ctx, failingPersistence{})
	require.NoError(t, err)
	root := r.Root()

	_, added, err := r.Record(ctx, testDID, testProof1, 1000)
	assert.False(t, added)
	assert.ErrorIs(t, err, msgs.ErrPersistence)
	assert.Regexp(t, "disk full", err)

	revoked, err := r.IsRevoked(ctx, testProof1)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, root, r.Root())
}
