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
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// CircuitInput holds field-ready values for one proof. Attributes that were
// not requested stay zero and their Check flag false.
type CircuitInput struct {
	Age                   *big.Int
	AgeThreshold          *big.Int
	Income                *big.Int
	IncomeThreshold       *big.Int
	ResidencyHash         *big.Int
	ExpectedResidencyHash *big.Int
	Secret                *big.Int

	CheckAge       bool
	CheckIncome    bool
	CheckResidency bool
}

// Requested reports which attributes the input asks the circuit to check.
func (in *CircuitInput) Requested() map[string]bool {
	return map[string]bool{
		messages.AttributeAge:       in.CheckAge,
		messages.AttributeIncome:    in.CheckIncome,
		messages.AttributeResidency: in.CheckResidency,
	}
}

// BuildInput maps the requested conditions onto the circuit fields. A
// requested attribute missing from the record is an ErrMissingAttribute.
func BuildInput(ctx context.Context, rec *messages.DIDRecord, conds *messages.Conditions) (*CircuitInput, error) {
	if conds.Empty() {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgNoConditions)
	}

	secret, err := hexutil.Decode(rec.Secret)
	if err != nil || len(secret) == 0 {
		return nil, msgs.NewError(ctx, msgs.ErrProofGeneration, msgs.MsgInvalidSecret, rec.ID)
	}

	in := &CircuitInput{
		Age:                   new(big.Int),
		AgeThreshold:          new(big.Int),
		Income:                new(big.Int),
		IncomeThreshold:       new(big.Int),
		ResidencyHash:         new(big.Int),
		ExpectedResidencyHash: new(big.Int),
		Secret:                toField(new(big.Int).SetBytes(secret)),
	}

	if conds.AgeThreshold != nil {
		if in.Age, in.AgeThreshold, err = numericPredicate(ctx, rec, messages.AttributeAge, *conds.AgeThreshold); err != nil {
			return nil, err
		}
		in.CheckAge = true
	}
	if conds.IncomeThreshold != nil {
		if in.Income, in.IncomeThreshold, err = numericPredicate(ctx, rec, messages.AttributeIncome, *conds.IncomeThreshold); err != nil {
			return nil, err
		}
		in.CheckIncome = true
	}
	if conds.ExpectedResidency != nil {
		value, err := stringAttribute(ctx, rec, messages.AttributeResidency)
		if err != nil {
			return nil, err
		}
		if in.ResidencyHash, err = HashString(value); err != nil {
			return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgWitnessFailed)
		}
		if in.ExpectedResidencyHash, err = HashString(*conds.ExpectedResidency); err != nil {
			return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgWitnessFailed)
		}
		in.CheckResidency = true
	}
	return in, nil
}

// AttributeConditions converts a single attribute condition into the
// equivalent multi attribute conditions.
func AttributeConditions(ctx context.Context, attribute string, cond *messages.AttributeCondition) (*messages.Conditions, error) {
	if cond == nil {
		cond = &messages.AttributeCondition{}
	}
	conds := &messages.Conditions{}
	switch attribute {
	case messages.AttributeAge, messages.AttributeIncome:
		if cond.Threshold == nil {
			return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMissingCondition, "threshold", attribute)
		}
		if attribute == messages.AttributeAge {
			conds.AgeThreshold = cond.Threshold
		} else {
			conds.IncomeThreshold = cond.Threshold
		}
	case messages.AttributeResidency:
		if cond.Expected == nil {
			return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMissingCondition, "expected value", attribute)
		}
		conds.ExpectedResidency = cond.Expected
	default:
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgUnknownAttribute, attribute)
	}
	return conds, nil
}

func numericPredicate(ctx context.Context, rec *messages.DIDRecord, attribute string, threshold int64) (*big.Int, *big.Int, error) {
	if threshold < 0 {
		return nil, nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgInvalidThreshold, attribute)
	}
	raw, ok := rec.Credentials[attribute]
	if !ok || raw == nil {
		return nil, nil, msgs.NewError(ctx, msgs.ErrMissingAttribute, msgs.MsgMissingAttribute, rec.ID, attribute)
	}
	value, ok := NumericValue(raw)
	if !ok {
		return nil, nil, msgs.NewError(ctx, msgs.ErrProofGeneration, msgs.MsgAttributeNotNumeric, attribute, raw)
	}
	return value, big.NewInt(threshold), nil
}

func stringAttribute(ctx context.Context, rec *messages.DIDRecord, attribute string) (string, error) {
	raw, ok := rec.Credentials[attribute]
	if !ok || raw == nil {
		return "", msgs.NewError(ctx, msgs.ErrMissingAttribute, msgs.MsgMissingAttribute, rec.ID, attribute)
	}
	s, ok := raw.(string)
	if !ok {
		return "", msgs.NewError(ctx, msgs.ErrProofGeneration, msgs.MsgAttributeNotString, attribute, raw)
	}
	return s, nil
}

// NumericValue converts a credential value into a non-negative integer.
// Records read back from JSON carry float64, in-process records may carry
// any integer type.
func NumericValue(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return nonNegative(big.NewInt(int64(n)))
	case int32:
		return nonNegative(big.NewInt(int64(n)))
	case int64:
		return nonNegative(big.NewInt(n))
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case float64:
		if n < 0 || n > maxSafeFloat || n != math.Trunc(n) {
			return nil, false
		}
		b, _ := big.NewFloat(n).Int(nil)
		return nonNegative(b)
	case json.Number:
		b, ok := new(big.Int).SetString(n.String(), 10)
		if !ok {
			return nil, false
		}
		return nonNegative(b)
	case string:
		if strings.TrimSpace(n) != n || n == "" {
			return nil, false
		}
		b, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, false
		}
		return nonNegative(b)
	default:
		return nil, false
	}
}

// larger float64 values no longer map to a single integer
const maxSafeFloat = 1<<53 - 1

// attribute values are kept well inside the scalar field so that the
// in-circuit comparison is an integer comparison
const maxAttributeBits = 128

func nonNegative(b *big.Int) (*big.Int, bool) {
	if b.Sign() < 0 || b.BitLen() > maxAttributeBits {
		return nil, false
	}
	return b, true
}
