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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// Keys is the compiled circuit with its Groth16 proving and verification
// keys. The verification key is fixed per CircuitVersion.
type Keys struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

func ProvingKeyFile(version int) string {
	return fmt.Sprintf("zkid_v%d.pk", version)
}

func VerifyingKeyFile(version int) string {
	return fmt.Sprintf("zkid_v%d.vk", version)
}

func SolidityVerifierFile(version int) string {
	return fmt.Sprintf("ZKIDVerifier_v%d.sol", version)
}

func Compile(ctx context.Context) (constraint.ConstraintSystem, error) {
	var circuit Circuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgCircuitCompileFailed)
	}
	log.L(ctx).Debugf("Compiled circuit v%d with %d constraints", CircuitVersion, ccs.GetNbConstraints())
	return ccs, nil
}

// Setup compiles the circuit and runs a fresh Groth16 setup. The result is
// only useful once persisted with Save and distributed with the verifier
// contract exported by ExportSolidity.
func Setup(ctx context.Context) (*Keys, error) {
	ccs, err := Compile(ctx)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgCircuitCompileFailed)
	}
	return &Keys{CCS: ccs, PK: pk, VK: vk}, nil
}

// LoadKeys compiles the circuit and reads the versioned keys from dir.
func LoadKeys(ctx context.Context, dir string) (*Keys, error) {
	ccs, err := Compile(ctx)
	if err != nil {
		return nil, err
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readKey(filepath.Join(dir, ProvingKeyFile(CircuitVersion)), pk); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgKeysLoadFailed, dir)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readKey(filepath.Join(dir, VerifyingKeyFile(CircuitVersion)), vk); err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgKeysLoadFailed, dir)
	}
	log.L(ctx).Infof("Loaded circuit v%d keys from %s", CircuitVersion, dir)
	return &Keys{CCS: ccs, PK: pk, VK: vk}, nil
}

// Save writes the proving and verification keys into dir.
func (k *Keys) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeKey(filepath.Join(dir, ProvingKeyFile(CircuitVersion)), k.PK); err != nil {
		return err
	}
	return writeKey(filepath.Join(dir, VerifyingKeyFile(CircuitVersion)), k.VK)
}

// ExportSolidity writes the on-chain verifier for the verification key.
func (k *Keys) ExportSolidity(w io.Writer) error {
	return k.VK.ExportSolidity(w)
}

func readKey(path string, key io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.ReadFrom(f)
	return err
}

func writeKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := key.WriteTo(f); err != nil {
		return err
	}
	return f.Sync()
}
