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

package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
)

// EncodeProof converts the decimal proof points into contract arguments.
// The precompile expects each G2 coordinate as (imaginary, real), so the
// inner pairs of B are swapped.
func EncodeProof(artifact *messages.ProofArtifact) (a [2]*big.Int, b [2][2]*big.Int, c [2]*big.Int, input []*big.Int, err error) {
	pts := artifact.Proof
	for i := 0; i < 2; i++ {
		if a[i], err = decimal(pts.A[i]); err != nil {
			return
		}
		if c[i], err = decimal(pts.C[i]); err != nil {
			return
		}
		for j := 0; j < 2; j++ {
			if b[i][1-j], err = decimal(pts.B[i][j]); err != nil {
				return
			}
		}
	}
	input = make([]*big.Int, len(artifact.PublicSignals))
	for i, s := range artifact.PublicSignals {
		if input[i], err = decimal(s); err != nil {
			return
		}
	}
	return
}

func decimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("invalid uint256 '%s'", s)
	}
	return v, nil
}

// Bytes32 parses a 0x prefixed 32 byte hex string, such as a DID id or a
// proof id.
func Bytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
