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

package services

import (
	"math/big"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/proofs"
)

// AdvisoryAttributes are plain comparisons of the stored values against the
// requested conditions, for display only. They are not authoritative: the
// outcome of a verification is whatever the ledger reports.
type AdvisoryAttributes map[string]*bool

// ComputeAdvisory evaluates each requested condition locally. Attributes
// that were not requested are left out, so a nil entry never means false.
func ComputeAdvisory(rec *messages.DIDRecord, conds *messages.Conditions) AdvisoryAttributes {
	out := AdvisoryAttributes{}
	if conds == nil {
		return out
	}
	if conds.AgeThreshold != nil {
		out[messages.AttributeAge] = atLeast(rec.Credentials[messages.AttributeAge], *conds.AgeThreshold)
	}
	if conds.IncomeThreshold != nil {
		out[messages.AttributeIncome] = atLeast(rec.Credentials[messages.AttributeIncome], *conds.IncomeThreshold)
	}
	if conds.ExpectedResidency != nil {
		v, ok := rec.Credentials[messages.AttributeResidency].(string)
		match := ok && v == *conds.ExpectedResidency
		out[messages.AttributeResidency] = &match
	}
	return out
}

// Mismatches lists the attributes where the advisory value differs from the
// result proven by the circuit.
func (a AdvisoryAttributes) Mismatches(proven map[string]*bool) []string {
	var diff []string
	for _, attr := range messages.Attributes {
		local, requested := a[attr]
		if !requested {
			continue
		}
		p := proven[attr]
		if p == nil || *p != *local {
			diff = append(diff, attr)
		}
	}
	return diff
}

func atLeast(value interface{}, threshold int64) *bool {
	v, ok := proofs.NumericValue(value)
	result := ok && v.Cmp(big.NewInt(threshold)) >= 0
	return &result
}
