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
	"fmt"

	ffconfig "github.com/hyperledger/firefly-common/pkg/config"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/apiserver"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
	"github.com/spf13/cobra"
)

type cli struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "zkid",
		Short: "Zero knowledge identity verifier: private attribute proofs settled on an Ethereum ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "f", "", "config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	})
	rootCmd.AddCommand(c.setupCmd())
	rootCmd.AddCommand(c.didCmd())
	rootCmd.AddCommand(c.verifyCmd())
	rootCmd.AddCommand(c.revokeCmd())
	rootCmd.AddCommand(c.statusCmd())
	return rootCmd
}

func Execute() int {
	rootCtx := context.Background()
	err := newRootCmd().ExecuteContext(rootCtx)
	if err != nil {
		log.L(rootCtx).Errorf("Exiting: %s", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file when one is given. Without one the
// built-in defaults apply.
func (c *cli) loadConfig() error {
	ffconfig.RootConfigReset()
	config.InitConfig()
	if c.cfgFile == "" {
		return nil
	}
	return ffconfig.ReadConfig("zkid", c.cfgFile)
}

func (c *cli) serve(ctx context.Context) error {
	log.L(ctx).Infof(string(msgs.StartupMsg))

	if err := c.loadConfig(); err != nil {
		return err
	}
	output, _ := json.MarshalIndent(ffconfig.GetConfig(), "", "  ")
	log.L(ctx).Debugf("Config: %s", output)

	as, err := apiserver.NewAPIServer(ctx)
	if err != nil {
		return err
	}
	return as.Serve(ctx)
}

// withManager runs fn against a manager built from the config file, closing
// it afterwards so the database lock is released.
func (c *cli) withManager(cmd *cobra.Command, fn func(ctx context.Context, vm services.VerificationManager) (interface{}, error)) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	vm, err := services.NewManager(ctx)
	if err != nil {
		return err
	}
	defer vm.Close()

	result, err := fn(ctx, vm)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
