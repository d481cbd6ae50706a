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

package cmd

import (
	"os"
	"path/filepath"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/proofs"
	"github.com/spf13/cobra"
)

type setupResult struct {
	CircuitVersion   int    `json:"circuitVersion"`
	ProvingKey       string `json:"provingKey"`
	VerifyingKey     string `json:"verifyingKey"`
	SolidityVerifier string `json:"solidityVerifier"`
}

func (c *cli) setupCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the Groth16 setup for the circuit and export the Solidity verifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			if outDir == "" {
				outDir = config.ZKIDConfig.GetString(config.ZKIDKeysDir)
			}
			ctx := cmd.Context()
			keys, err := proofs.Setup(ctx)
			if err != nil {
				return err
			}
			if err := keys.Save(outDir); err != nil {
				return err
			}
			solPath := filepath.Join(outDir, proofs.SolidityVerifierFile(proofs.CircuitVersion))
			f, err := os.Create(solPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := keys.ExportSolidity(f); err != nil {
				return err
			}
			log.L(ctx).Infof("Wrote circuit v%d keys to %s", proofs.CircuitVersion, outDir)
			return printJSON(cmd, &setupResult{
				CircuitVersion:   proofs.CircuitVersion,
				ProvingKey:       filepath.Join(outDir, proofs.ProvingKeyFile(proofs.CircuitVersion)),
				VerifyingKey:     filepath.Join(outDir, proofs.VerifyingKeyFile(proofs.CircuitVersion)),
				SolidityVerifier: solPath,
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory, defaults to zkid.keysDir")
	return cmd
}
