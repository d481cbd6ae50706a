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
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// CircuitVersion is bound into every proof as the first public signal.
// Bump it whenever Define changes; keys are versioned by it.
const CircuitVersion = 1

// Positions of the public signals. gnark orders public inputs by field
// declaration order.
const (
	SignalVersion = iota
	SignalAgeThreshold
	SignalIncomeThreshold
	SignalExpectedResidencyHash
	SignalCheckAge
	SignalCheckIncome
	SignalCheckResidency
	SignalNullifier
	SignalAgeOk
	SignalIncomeOk
	SignalResidencyOk
	NbPublicSignals
)

// Circuit proves threshold and equality predicates over private attributes.
// Each result bit is computed in-circuit and masked by its request flag, so
// an unsatisfied predicate still yields a valid proof with a 0 bit.
type Circuit struct {
	Version               frontend.Variable `gnark:",public"`
	AgeThreshold          frontend.Variable `gnark:",public"`
	IncomeThreshold       frontend.Variable `gnark:",public"`
	ExpectedResidencyHash frontend.Variable `gnark:",public"`
	CheckAge              frontend.Variable `gnark:",public"`
	CheckIncome           frontend.Variable `gnark:",public"`
	CheckResidency        frontend.Variable `gnark:",public"`
	Nullifier             frontend.Variable `gnark:",public"`
	AgeOk                 frontend.Variable `gnark:",public"`
	IncomeOk              frontend.Variable `gnark:",public"`
	ResidencyOk           frontend.Variable `gnark:",public"`

	Age           frontend.Variable
	Income        frontend.Variable
	ResidencyHash frontend.Variable
	Secret        frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Version, CircuitVersion)

	api.AssertIsBoolean(c.CheckAge)
	api.AssertIsBoolean(c.CheckIncome)
	api.AssertIsBoolean(c.CheckResidency)

	api.AssertIsEqual(c.AgeOk, api.Mul(c.CheckAge, atLeast(api, c.Age, c.AgeThreshold)))
	api.AssertIsEqual(c.IncomeOk, api.Mul(c.CheckIncome, atLeast(api, c.Income, c.IncomeThreshold)))
	api.AssertIsEqual(c.ResidencyOk, api.Mul(c.CheckResidency, api.IsZero(api.Sub(c.ResidencyHash, c.ExpectedResidencyHash))))

	// the nullifier ties the secret to this exact request
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(
		c.Secret,
		c.Version,
		c.AgeThreshold,
		c.IncomeThreshold,
		c.ExpectedResidencyHash,
		c.CheckAge,
		c.CheckIncome,
		c.CheckResidency,
	)
	api.AssertIsEqual(c.Nullifier, hasher.Sum())

	return nil
}

// atLeast returns 1 when value >= threshold and 0 otherwise.
func atLeast(api frontend.API, value, threshold frontend.Variable) frontend.Variable {
	below := api.IsZero(api.Add(api.Cmp(value, threshold), 1))
	return api.Sub(1, below)
}
