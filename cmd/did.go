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
	"encoding/json"
	"strings"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
	"github.com/spf13/cobra"
)

func (c *cli) didCmd() *cobra.Command {
	didCmd := &cobra.Command{
		Use:   "did",
		Short: "Manage DIDs and their credentials",
	}

	var creds []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DID from name=value credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseCredentials(cmd.Context(), creds)
			if err != nil {
				return err
			}
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.CreateDID(ctx, &messages.CreateDIDRequest{Credentials: parsed})
			})
		},
	}
	createCmd.Flags().StringArrayVarP(&creds, "credential", "c", nil, "credential as name=value, repeatable. Values that parse as JSON keep their type")

	didCmd.AddCommand(createCmd)
	didCmd.AddCommand(&cobra.Command{
		Use:   "get <did>",
		Short: "Show a DID and its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.GetDID(ctx, args[0])
			})
		},
	})
	didCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List DID ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.ListDIDs(ctx)
			})
		},
	})
	didCmd.AddCommand(&cobra.Command{
		Use:   "backup <did>",
		Short: "Write an encrypted backup of a DID to the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.Backup(ctx, args[0])
			})
		},
	})
	didCmd.AddCommand(&cobra.Command{
		Use:   "restore <cid>",
		Short: "Restore a DID from an archived backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.Restore(ctx, args[0])
			})
		},
	})
	return didCmd
}

func parseCredentials(ctx context.Context, pairs []string) (messages.Credentials, error) {
	creds := messages.Credentials{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgInvalidCredentialFlag, pair)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		creds[name] = value
	}
	return creds, nil
}
