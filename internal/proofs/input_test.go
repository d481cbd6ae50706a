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
	"testing"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInputMissingIncome(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25, "residency": "NY"})
	in, err := BuildInput(context.Background(), rec, &messages.Conditions{IncomeThreshold: int64p(1000)})
	assert.Nil(t, in)
	assert.ErrorIs(t, err, msgs.ErrMissingAttribute)
	assert.Regexp(t, "income", err)
}

func TestBuildInputMissingResidency(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25})
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{ExpectedResidency: stringp("NY")})
	assert.ErrorIs(t, err, msgs.ErrMissingAttribute)
}

func TestBuildInputNoConditions(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25})
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
	_, err = BuildInput(context.Background(), rec, nil)
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
}

func TestBuildInputNegativeThreshold(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25})
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{AgeThreshold: int64p(-1)})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
}

func TestBuildInputNonNumericAge(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": "twenty"})
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{AgeThreshold: int64p(18)})
	assert.ErrorIs(t, err, msgs.ErrProofGeneration)
}

func TestBuildInputNonStringResidency(t *testing.T) {
	rec := testRecord(messages.Credentials{"residency": 7})
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{ExpectedResidency: stringp("NY")})
	assert.ErrorIs(t, err, msgs.ErrProofGeneration)
}

func TestBuildInputBadSecret(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25})
	rec.Secret = "nothex"
	_, err := BuildInput(context.Background(), rec, &messages.Conditions{AgeThreshold: int64p(18)})
	assert.ErrorIs(t, err, msgs.ErrProofGeneration)
}

func TestBuildInputOnlyRequestedFields(t *testing.T) {
	rec := testRecord(messages.Credentials{"age": 25, "income": 50000, "residency": "NY"})
	in, err := BuildInput(context.Background(), rec, &messages.Conditions{IncomeThreshold: int64p(40000)})
	require.NoError(t, err)
	assert.False(t, in.CheckAge)
	assert.True(t, in.CheckIncome)
	assert.False(t, in.CheckResidency)
	assert.Equal(t, int64(0), in.Age.Int64())
	assert.Equal(t, int64(50000), in.Income.Int64())
	assert.Equal(t, int64(40000), in.IncomeThreshold.Int64())
	assert.Equal(t, 0, in.ResidencyHash.Sign())
	assert.Equal(t, map[string]bool{"age": false, "income": true, "residency": false}, in.Requested())
}

func TestBuildInputResidencyHashes(t *testing.T) {
	rec := testRecord(messages.Credentials{"residency": "NY"})
	in, err := BuildInput(context.Background(), rec, &messages.Conditions{ExpectedResidency: stringp("NY")})
	require.NoError(t, err)
	expected, err := HashString("NY")
	require.NoError(t, err)
	assert.Equal(t, 0, expected.Cmp(in.ResidencyHash))
	assert.Equal(t, 0, in.ResidencyHash.Cmp(in.ExpectedResidencyHash))

	other, err := HashString("CA")
	require.NoError(t, err)
	assert.NotEqual(t, 0, other.Cmp(expected))
}

func TestHashStringBindsLength(t *testing.T) {
	short, err := HashString("CA")
	require.NoError(t, err)
	padded, err := HashString("CA\x00")
	require.NoError(t, err)
	assert.NotEqual(t, 0, short.Cmp(padded))

	empty, err := HashString("")
	require.NoError(t, err)
	nul, err := HashString("\x00")
	require.NoError(t, err)
	assert.NotEqual(t, 0, empty.Cmp(nul))
}

func TestBuildInputTrailingNulResidencyDiffers(t *testing.T) {
	rec := testRecord(messages.Credentials{"residency": "CA\x00"})
	in, err := BuildInput(context.Background(), rec, &messages.Conditions{ExpectedResidency: stringp("CA")})
	require.NoError(t, err)
	assert.NotEqual(t, 0, in.ResidencyHash.Cmp(in.ExpectedResidencyHash))
}

func TestAttributeConditionsUseNamedSlot(t *testing.T) {
	ctx := context.Background()
	rec := testRecord(messages.Credentials{"age": 25, "income": 50000})
	conds, err := AttributeConditions(ctx, "income", &messages.AttributeCondition{Threshold: int64p(60000)})
	require.NoError(t, err)
	in, err := BuildInput(ctx, rec, conds)
	require.NoError(t, err)
	assert.False(t, in.CheckAge)
	assert.True(t, in.CheckIncome)
	assert.Equal(t, int64(60000), in.IncomeThreshold.Int64())
	assert.Equal(t, 0, in.AgeThreshold.Sign())
}

func TestAttributeConditions(t *testing.T) {
	ctx := context.Background()
	conds, err := AttributeConditions(ctx, "residency", &messages.AttributeCondition{Expected: stringp("NY")})
	require.NoError(t, err)
	assert.Equal(t, "NY", *conds.ExpectedResidency)
	assert.Nil(t, conds.AgeThreshold)

	_, err = AttributeConditions(ctx, "age", &messages.AttributeCondition{Expected: stringp("NY")})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)

	_, err = AttributeConditions(ctx, "residency", nil)
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)

	_, err = AttributeConditions(ctx, "height", &messages.AttributeCondition{Threshold: int64p(1)})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
}

func TestNumericValue(t *testing.T) {
	cases := []struct {
		in  interface{}
		out int64
		ok  bool
	}{
		{25, 25, true},
		{int64(7), 7, true},
		{uint64(9), 9, true},
		{float64(50000), 50000, true},
		{float64(1<<53 - 1), 1<<53 - 1, true},
		{float64(1 << 53), 0, false},
		{float64(1<<53 + 2), 0, false},
		{float64(1e300), 0, false},
		{json.Number("42"), 42, true},
		{"18", 18, true},
		{0, 0, true},
		{-1, 0, false},
		{float64(1.5), 0, false},
		{math.Inf(1), 0, false},
		{math.NaN(), 0, false},
		{" 18", 0, false},
		{"abc", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		v, ok := NumericValue(c.in)
		assert.Equal(t, c.ok, ok, "%v", c.in)
		if c.ok {
			assert.Equal(t, c.out, v.Int64(), "%v", c.in)
		}
	}
}
