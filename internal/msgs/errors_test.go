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

package msgs

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorCarriesKind(t *testing.T) {
	err := NewError(context.Background(), ErrNotFound, MsgDIDNotFound, "0x1234")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrLedger)
	assert.Contains(t, err.Error(), "0x1234")
	assert.Equal(t, ErrNotFound, KindOf(err))
	assert.Equal(t, http.StatusNotFound, err.(*KindError).HTTPStatus())
}

func TestWrapErrorKeepsCause(t *testing.T) {
	cause := errors.New("pop")
	err := WrapError(context.Background(), ErrLedger, cause, MsgLedgerTransact, "verify")
	assert.ErrorIs(t, err, ErrLedger)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "pop")
	assert.Equal(t, http.StatusBadGateway, err.(*KindError).HTTPStatus())
	assert.Equal(t, MsgLedgerTransact, err.(*KindError).MessageKey())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestErrorMessagesAreCodedAndFormatted(t *testing.T) {
	err := NewError(context.Background(), ErrMissingAttribute, MsgMissingAttribute, "did:zkid:1", "income")
	assert.Regexp(t, "^ZK10104: DID 'did:zkid:1' has no value for requested attribute 'income'$", err.Error())
	assert.NotContains(t, err.Error(), "%!")

	err = NewError(context.Background(), ErrNotFound, MsgNotFound404)
	assert.Regexp(t, "^ZK10142: Not Found", err.Error())
}
