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
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-rapidsnark/types"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// ProofID is the content hash of the serialized artifact. It is the
// idempotency key for revocation.
func ProofID(artifact *messages.ProofArtifact) (string, error) {
	b, err := json.Marshal(artifact)
	if err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(b).Hex(), nil
}

func toArtifact(proof *groth16_bn254.Proof, public fr.Vector) *messages.ProofArtifact {
	signals := make([]string, len(public))
	for i := range public {
		signals[i] = public[i].BigInt(new(big.Int)).String()
	}
	return &messages.ProofArtifact{
		Proof: messages.ProofPoints{
			A: [2]string{fpString(&proof.Ar.X), fpString(&proof.Ar.Y)},
			B: [2][2]string{
				{fpString(&proof.Bs.X.A0), fpString(&proof.Bs.X.A1)},
				{fpString(&proof.Bs.Y.A0), fpString(&proof.Bs.Y.A1)},
			},
			C: [2]string{fpString(&proof.Krs.X), fpString(&proof.Krs.Y)},
		},
		PublicSignals: signals,
	}
}

func fpString(e *fp.Element) string {
	return e.BigInt(new(big.Int)).String()
}

// fromArtifact rebuilds the gnark proof. Coordinates must be canonical base
// field elements and points must lie on the curve.
func fromArtifact(ctx context.Context, artifact *messages.ProofArtifact) (*groth16_bn254.Proof, error) {
	var proof groth16_bn254.Proof
	pts := artifact.Proof
	targets := []struct {
		dst *fp.Element
		src string
	}{
		{&proof.Ar.X, pts.A[0]}, {&proof.Ar.Y, pts.A[1]},
		{&proof.Bs.X.A0, pts.B[0][0]}, {&proof.Bs.X.A1, pts.B[0][1]},
		{&proof.Bs.Y.A0, pts.B[1][0]}, {&proof.Bs.Y.A1, pts.B[1][1]},
		{&proof.Krs.X, pts.C[0]}, {&proof.Krs.Y, pts.C[1]},
	}
	for _, t := range targets {
		v, ok := new(big.Int).SetString(t.src, 10)
		if !ok || v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
			return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMalformedArtifact, fmt.Sprintf("coordinate '%s'", t.src))
		}
		t.dst.SetBigInt(v)
	}
	if !proof.Ar.IsOnCurve() || !proof.Bs.IsOnCurve() || !proof.Krs.IsOnCurve() {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMalformedArtifact, "point not on curve")
	}
	return &proof, nil
}

// Signals parses the public signals into scalar field integers.
func Signals(ctx context.Context, artifact *messages.ProofArtifact) ([]*big.Int, error) {
	if len(artifact.PublicSignals) != NbPublicSignals {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMalformedArtifact,
			fmt.Sprintf("expected %d public signals, got %d", NbPublicSignals, len(artifact.PublicSignals)))
	}
	out := make([]*big.Int, len(artifact.PublicSignals))
	for i, s := range artifact.PublicSignals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 || v.Cmp(fr.Modulus()) >= 0 {
			return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMalformedArtifact, fmt.Sprintf("public signal %d", i))
		}
		out[i] = v
	}
	return out, nil
}

// ProvenResults reads the per attribute result bits out of the public
// signals. Attributes whose request flag is 0 map to nil.
func ProvenResults(ctx context.Context, artifact *messages.ProofArtifact) (map[string]*bool, error) {
	signals, err := Signals(ctx, artifact)
	if err != nil {
		return nil, err
	}
	pairs := []struct {
		attribute string
		check, ok int
	}{
		{messages.AttributeAge, SignalCheckAge, SignalAgeOk},
		{messages.AttributeIncome, SignalCheckIncome, SignalIncomeOk},
		{messages.AttributeResidency, SignalCheckResidency, SignalResidencyOk},
	}
	results := make(map[string]*bool, len(pairs))
	for _, p := range pairs {
		if signals[p.check].Sign() == 0 {
			continue
		}
		v := signals[p.ok].Cmp(big.NewInt(1)) == 0
		results[p.attribute] = &v
	}
	return results, nil
}

// SnarkJS renders the artifact in the snarkjs/rapidsnark JSON layout, with
// projective coordinates, for circom based verifiers.
func SnarkJS(artifact *messages.ProofArtifact) *types.ZKProof {
	pts := artifact.Proof
	return &types.ZKProof{
		Proof: &types.ProofData{
			A: []string{pts.A[0], pts.A[1], "1"},
			B: [][]string{
				{pts.B[0][0], pts.B[0][1]},
				{pts.B[1][0], pts.B[1][1]},
				{"1", "0"},
			},
			C:        []string{pts.C[0], pts.C[1], "1"},
			Protocol: "groth16",
		},
		PubSignals: append([]string(nil), artifact.PublicSignals...),
	}
}
