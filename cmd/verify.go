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

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
	"github.com/spf13/cobra"
)

func (c *cli) verifyCmd() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Prove conditions over a DID's credentials and settle the proof on chain",
	}

	var threshold int64
	var expected string
	attributeCmd := &cobra.Command{
		Use:   "attribute <did> <attribute>",
		Short: "Verify a single attribute with --threshold (age, income) or --expected (residency)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond := &messages.AttributeCondition{}
			if cmd.Flags().Changed("threshold") {
				cond.Threshold = &threshold
			}
			if cmd.Flags().Changed("expected") {
				cond.Expected = &expected
			}
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				verified, err := vm.VerifyAttribute(ctx, args[0], args[1], cond)
				if err != nil {
					return nil, err
				}
				return &messages.AttributeVerification{DIDID: args[0], Attribute: args[1], Verified: verified}, nil
			})
		},
	}
	attributeCmd.Flags().Int64Var(&threshold, "threshold", 0, "minimum value for a numeric attribute")
	attributeCmd.Flags().StringVar(&expected, "expected", "", "expected value for a string attribute")

	var age, income int64
	var residency string
	multipleCmd := &cobra.Command{
		Use:   "multiple <did>",
		Short: "Verify any combination of --age, --income and --residency with one proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conds := &messages.Conditions{}
			if cmd.Flags().Changed("age") {
				conds.AgeThreshold = &age
			}
			if cmd.Flags().Changed("income") {
				conds.IncomeThreshold = &income
			}
			if cmd.Flags().Changed("residency") {
				conds.ExpectedResidency = &residency
			}
			return c.withManager(cmd, func(ctx context.Context, vm services.VerificationManager) (interface{}, error) {
				return vm.VerifyMultiple(ctx, args[0], conds)
			})
		},
	}
	multipleCmd.Flags().Int64Var(&age, "age", 0, "minimum age")
	multipleCmd.Flags().Int64Var(&income, "income", 0, "minimum income")
	multipleCmd.Flags().StringVar(&residency, "residency", "", "expected residency")

	verifyCmd.AddCommand(attributeCmd)
	verifyCmd.AddCommand(multipleCmd)
	return verifyCmd
}
