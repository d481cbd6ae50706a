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

package proofs

import (
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// HashString maps a string attribute into the scalar field with Poseidon.
// iden3 Poseidon works over the BN254 scalar field, so the output is already
// a valid field element. HashBytes zero pads the last chunk, so the byte
// length is prefixed to keep "CA" and "CA\x00" apart.
func HashString(s string) (*big.Int, error) {
	buf := make([]byte, 8+len(s))
	binary.BigEndian.PutUint64(buf, uint64(len(s)))
	copy(buf[8:], s)
	return poseidon.HashBytes(buf)
}

// nullifier computes natively what Circuit.Define computes with the MiMC
// gadget. Inputs are written one field element at a time.
func nullifier(inputs ...*big.Int) *big.Int {
	h := mimc.NewMiMC()
	for _, x := range inputs {
		var e fr.Element
		e.SetBigInt(x)
		h.Write(e.Marshal())
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func toField(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, fr.Modulus())
}
