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
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// Engine proves and verifies with a fixed set of keys. It keeps no per call
// state and is safe for concurrent use.
type Engine struct {
	keys *Keys
}

func NewEngine(keys *Keys) *Engine {
	return &Engine{keys: keys}
}

// Prove runs the Groth16 prover. It never returns a partial artifact.
func (e *Engine) Prove(ctx context.Context, in *CircuitInput) (*messages.ProofArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgProveFailed)
	}

	assignment := in.assignment()
	field := ecc.BN254.ScalarField()
	w, err := frontend.NewWitness(assignment, field)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgWitnessFailed)
	}

	proof, err := groth16.Prove(e.keys.CCS, e.keys.PK, w)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgProveFailed)
	}
	bnProof, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, msgs.NewError(ctx, msgs.ErrProofGeneration, msgs.MsgUnexpectedProofType, proof)
	}

	public, err := w.Public()
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgWitnessFailed)
	}
	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return nil, msgs.NewError(ctx, msgs.ErrProofGeneration, msgs.MsgUnexpectedProofType, public.Vector())
	}
	log.L(ctx).Debugf("Generated proof with %d public signals", len(vec))
	return toArtifact(bnProof, vec), nil
}

// Verify checks the artifact against the verification key. A well formed
// artifact that does not verify yields false with no error.
func (e *Engine) Verify(ctx context.Context, artifact *messages.ProofArtifact) (bool, error) {
	proof, err := fromArtifact(ctx, artifact)
	if err != nil {
		return false, err
	}
	signals, err := Signals(ctx, artifact)
	if err != nil {
		return false, err
	}
	publicWitness, err := frontend.NewWitness(publicAssignment(signals), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgMalformedArtifact, "public signals")
	}
	if err := groth16.Verify(proof, e.keys.VK, publicWitness); err != nil {
		log.L(ctx).Debugf("Proof rejected: %s", err)
		return false, nil
	}
	return true, nil
}

func (in *CircuitInput) assignment() *Circuit {
	checkAge, checkIncome, checkResidency := bit(in.CheckAge), bit(in.CheckIncome), bit(in.CheckResidency)
	version := big.NewInt(CircuitVersion)

	ageOk := in.CheckAge && in.Age.Cmp(in.AgeThreshold) >= 0
	incomeOk := in.CheckIncome && in.Income.Cmp(in.IncomeThreshold) >= 0
	residencyOk := in.CheckResidency && in.ResidencyHash.Cmp(in.ExpectedResidencyHash) == 0

	return &Circuit{
		Version:               version,
		AgeThreshold:          in.AgeThreshold,
		IncomeThreshold:       in.IncomeThreshold,
		ExpectedResidencyHash: in.ExpectedResidencyHash,
		CheckAge:              checkAge,
		CheckIncome:           checkIncome,
		CheckResidency:        checkResidency,
		Nullifier: nullifier(
			in.Secret, version, in.AgeThreshold, in.IncomeThreshold, in.ExpectedResidencyHash,
			checkAge, checkIncome, checkResidency,
		),
		AgeOk:         bit(ageOk),
		IncomeOk:      bit(incomeOk),
		ResidencyOk:   bit(residencyOk),
		Age:           in.Age,
		Income:        in.Income,
		ResidencyHash: in.ResidencyHash,
		Secret:        in.Secret,
	}
}

func publicAssignment(signals []*big.Int) *Circuit {
	return &Circuit{
		Version:               signals[SignalVersion],
		AgeThreshold:          signals[SignalAgeThreshold],
		IncomeThreshold:       signals[SignalIncomeThreshold],
		ExpectedResidencyHash: signals[SignalExpectedResidencyHash],
		CheckAge:              signals[SignalCheckAge],
		CheckIncome:           signals[SignalCheckIncome],
		CheckResidency:        signals[SignalCheckResidency],
		Nullifier:             signals[SignalNullifier],
		AgeOk:                 signals[SignalAgeOk],
		IncomeOk:              signals[SignalIncomeOk],
		ResidencyOk:           signals[SignalResidencyOk],
	}
}

func bit(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
