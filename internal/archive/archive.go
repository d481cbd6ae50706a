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
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// ContentStore is a content addressed blob store. Add returns the CID of
// the stored bytes.
type ContentStore interface {
	Add(ctx context.Context, data []byte) (string, error)
	Cat(ctx context.Context, cid string) ([]byte, error)
}

// Archive keeps DID backups encrypted and audit records in the clear on a
// ContentStore.
type Archive struct {
	store  ContentStore
	sealer *sealer
}

// archivedDID is the stored backup document. Only the id and timestamps are
// readable without the key.
type archivedDID struct {
	ID          string    `json:"id"`
	Created     int64     `json:"created"`
	Updated     int64     `json:"updated"`
	Credentials *Envelope `json:"credentials"`
}

type sealedPayload struct {
	Credentials messages.Credentials `json:"credentials"`
	Secret      string               `json:"secret"`
}

func New(ctx context.Context, store ContentStore, key []byte) (*Archive, error) {
	s, err := newSealer(key, rand.Reader)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgInvalidEncryptionKey)
	}
	return &Archive{store: store, sealer: s}, nil
}

// NewFromConfig builds the archive from the archive config section.
func NewFromConfig(ctx context.Context) (*Archive, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(config.ArchiveConfig.GetString(config.ArchiveEncryptionKey), "0x"))
	if err != nil || len(key) != 32 {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgInvalidEncryptionKey)
	}
	var store ContentStore
	switch t := config.ArchiveConfig.GetString(config.ArchiveType); t {
	case config.ArchiveTypeIPFS:
		url := config.ArchiveConfig.GetString(config.ArchiveIPFSURL)
		log.L(ctx).Infof("Archiving to IPFS at %s", url)
		store = NewIPFSStore(url)
	case config.ArchiveTypeMemory:
		log.L(ctx).Warnf("Archiving to volatile memory store")
		store = NewMemoryStore()
	default:
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgUnknownArchiveType, t)
	}
	return New(ctx, store, key)
}

// Store seals the credentials and secret of rec and returns the CID of the
// backup document. The DID id is the associated data of the seal.
func (a *Archive) Store(ctx context.Context, rec *messages.DIDRecord) (string, error) {
	plaintext, err := json.Marshal(&sealedPayload{Credentials: rec.Credentials, Secret: rec.Secret})
	if err != nil {
		return "", msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgArchiveStoreFailed)
	}
	env, err := a.sealer.seal(plaintext, []byte(rec.ID))
	if err != nil {
		return "", msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgRandomFailed)
	}
	return a.add(ctx, &archivedDID{
		ID:          rec.ID,
		Created:     rec.Created,
		Updated:     rec.Updated,
		Credentials: env,
	})
}

// Retrieve fetches and opens a backup. Any authentication failure is a
// decryption error and no part of the record is returned.
func (a *Archive) Retrieve(ctx context.Context, cid string) (*messages.DIDRecord, error) {
	var doc archivedDID
	if err := a.get(ctx, cid, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" || doc.Credentials == nil {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgArchiveMalformed, cid)
	}
	plaintext, err := a.sealer.open(doc.Credentials, []byte(doc.ID))
	if err != nil {
		log.L(ctx).Errorf("Failed to open archive %s: %s", cid, err)
		return nil, msgs.WrapError(ctx, msgs.ErrDecryption, err, msgs.MsgDecryptionFailed, doc.ID)
	}
	var payload sealedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrDecryption, err, msgs.MsgDecryptionFailed, doc.ID)
	}
	return &messages.DIDRecord{
		ID:          doc.ID,
		Credentials: payload.Credentials,
		Secret:      payload.Secret,
		Created:     doc.Created,
		Updated:     doc.Updated,
	}, nil
}

func (a *Archive) StoreVerificationRecord(ctx context.Context, rec *messages.VerificationRecord) (string, error) {
	return a.add(ctx, rec)
}

func (a *Archive) GetVerificationRecord(ctx context.Context, cid string) (*messages.VerificationRecord, error) {
	var rec messages.VerificationRecord
	if err := a.get(ctx, cid, &rec); err != nil {
		return nil, err
	}
	if rec.Result == nil {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgArchiveMalformed, cid)
	}
	return &rec, nil
}

func (a *Archive) StoreRevocationRecord(ctx context.Context, rec *messages.RevocationRecord) (string, error) {
	return a.add(ctx, rec)
}

func (a *Archive) add(ctx context.Context, doc interface{}) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgArchiveStoreFailed)
	}
	cid, err := a.store.Add(ctx, b)
	if err != nil {
		return "", msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgArchiveStoreFailed)
	}
	log.L(ctx).Debugf("Archived %d bytes as %s", len(b), cid)
	return cid, nil
}

func (a *Archive) get(ctx context.Context, cid string, doc interface{}) error {
	b, err := a.store.Cat(ctx, cid)
	if err != nil {
		if msgs.KindOf(err) != nil {
			return err
		}
		return msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgArchiveFetchFailed, cid)
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgArchiveMalformed, cid)
	}
	return nil
}
