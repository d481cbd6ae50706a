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
	"context"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
	"github.com/spf13/cobra"
)

func (c *cli) revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <did> <proofId>",
		Short: "Revoke a verification on chain and record it in the revocation registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				if err := config.ValidateLedger(ctx); err != nil {
					return nil, err
				}
				revoked, err := vm.Revoke(ctx, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return &messages.RevokeResponse{ProofID: args[1], Revoked: revoked}, nil
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [address]",
		Short: "Show the verifier status, or the on-chain verification status of an address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				if len(args) == 0 {
					return vm.Status(ctx)
				}
				if err := config.ValidateLedger(ctx); err != nil {
					return nil, err
				}
				return vm.CheckStatus(ctx, args[0])
			})
		},
	}
}
