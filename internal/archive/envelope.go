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
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Envelope is an AEAD sealed payload, hex encoded, with the tag kept apart
// from the ciphertext.
type Envelope struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	AuthTag    string `json:"authTag"`
}

type sealer struct {
	aead   cipher.AEAD
	random io.Reader
}

func newSealer(key []byte, random io.Reader) (*sealer, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead, random: random}, nil
}

func (s *sealer) seal(plaintext, aad []byte) (*Envelope, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(s.random, nonce); err != nil {
		return nil, err
	}
	sealed := s.aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - s.aead.Overhead()
	return &Envelope{
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(sealed[:split]),
		AuthTag:    hex.EncodeToString(sealed[split:]),
	}, nil
}

func (s *sealer) open(env *Envelope, aad []byte) ([]byte, error) {
	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil || len(nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("bad nonce")
	}
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("bad ciphertext")
	}
	tag, err := hex.DecodeString(env.AuthTag)
	if err != nil || len(tag) != s.aead.Overhead() {
		return nil, fmt.Errorf("bad auth tag")
	}
	return s.aead.Open(nil, nonce, append(ciphertext, tag...), aad)
}
