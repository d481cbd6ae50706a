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

	"github.com/hyperledger/firefly-common/pkg/i18n"
)

// Error kinds. Every error returned by a public operation wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrProofGeneration  = errors.New("proof generation")
	ErrLedger           = errors.New("ledger")
	ErrDecryption       = errors.New("decryption")
	ErrPersistence      = errors.New("persistence")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
)

var statusHints = map[error]int{
	ErrNotFound:         http.StatusNotFound,
	ErrMissingAttribute: http.StatusBadRequest,
	ErrInvalidInput:     http.StatusBadRequest,
	ErrConflict:         http.StatusConflict,
	ErrLedger:           http.StatusBadGateway,
	ErrDecryption:       http.StatusUnprocessableEntity,
	ErrProofGeneration:  http.StatusInternalServerError,
	ErrPersistence:      http.StatusInternalServerError,
}

type KindError struct {
	Kind error
	Err  error
	key  i18n.ErrorMessageKey
}

func (e *KindError) Error() string {
	return e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func (e *KindError) MessageKey() i18n.ErrorMessageKey {
	return e.key
}

func (e *KindError) HTTPStatus() int {
	if status, ok := statusHints[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (e *KindError) StackTrace() string {
	return ""
}

func NewError(ctx context.Context, kind error, key i18n.ErrorMessageKey, inserts ...interface{}) error {
	return &KindError{
		Kind: kind,
		Err:  i18n.NewError(ctx, key, inserts...),
		key:  key,
	}
}

func WrapError(ctx context.Context, kind error, err error, key i18n.ErrorMessageKey, inserts ...interface{}) error {
	return &KindError{
		Kind: kind,
		Err:  i18n.WrapError(ctx, err, key, inserts...),
		key:  key,
	}
}

// KindOf returns the error kind carried by err, or nil when there is none.
func KindOf(err error) error {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return nil
}
