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
	"net/http"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

type StartupMessage string

const StartupMsg StartupMessage = "Starting zkid verifier"

var registerPrefix sync.Once

var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registerPrefix.Do(func() {
		i18n.RegisterPrefix("ZK10", "ZKID Verifier")
	})
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	MsgDIDNotFound             = ffe("ZK10100", "DID '%s' not found")
	MsgDIDAlreadyExists        = ffe("ZK10101", "DID '%s' already exists")
	MsgDIDPersistFailed        = ffe("ZK10102", "Failed to persist DID '%s'")
	MsgRandomFailed            = ffe("ZK10103", "Failed to read from the secure random source")
	MsgMissingAttribute        = ffe("ZK10104", "DID '%s' has no value for requested attribute '%s'")
	MsgAttributeNotNumeric     = ffe("ZK10105", "Attribute '%s' must be a non-negative integer, got '%v'")
	MsgAttributeNotString      = ffe("ZK10106", "Attribute '%s' must be a string, got '%v'")
	MsgUnknownAttribute        = ffe("ZK10107", "Unknown attribute '%s'")
	MsgNoConditions            = ffe("ZK10108", "At least one verification condition is required")
	MsgInvalidThreshold        = ffe("ZK10109", "Threshold for '%s' must be a non-negative integer")
	MsgMissingCondition        = ffe("ZK10110", "A %s is required to verify attribute '%s'")
	MsgInvalidSecret           = ffe("ZK10111", "DID '%s' carries a malformed secret")
	MsgWitnessFailed           = ffe("ZK10112", "Failed to build the witness")
	MsgProveFailed             = ffe("ZK10113", "Proof generation failed")
	MsgUnexpectedProofType     = ffe("ZK10114", "Unexpected proof type %T")
	MsgMalformedArtifact       = ffe("ZK10115", "Malformed proof artifact: %s")
	MsgKeysLoadFailed          = ffe("ZK10116", "Failed to load circuit keys from '%s'")
	MsgCircuitCompileFailed    = ffe("ZK10117", "Failed to compile the circuit")
	MsgLedgerNotConfigured     = ffe("ZK10118", "No ledger contract address has been configured")
	MsgLedgerNoSigner          = ffe("ZK10119", "No signing key has been configured for ledger transactions")
	MsgLedgerConnect           = ffe("ZK10120", "Failed to connect to the ledger at '%s'")
	MsgLedgerTransact          = ffe("ZK10121", "Failed to submit '%s' transaction")
	MsgLedgerCall              = ffe("ZK10122", "Failed to call '%s'")
	MsgLedgerReverted          = ffe("ZK10123", "Transaction %s reverted")
	MsgLedgerReceiptTimeout    = ffe("ZK10124", "Transaction %s was not observed within %s, outcome unknown")
	MsgLedgerNoEvent           = ffe("ZK10125", "Transaction %s emitted no VerificationResult event")
	MsgLedgerInvalidAddress    = ffe("ZK10126", "Invalid address '%s'")
	MsgInvalidProofID          = ffe("ZK10127", "Invalid proof id '%s'")
	MsgRevocationInFlight      = ffe("ZK10128", "Revocation of proof '%s' is already in progress")
	MsgRevocationPersistFailed = ffe("ZK10129", "Failed to record revocation of proof '%s'")
	MsgDecryptionFailed        = ffe("ZK10130", "Failed to decrypt the archived credentials of '%s'")
	MsgInvalidEncryptionKey    = ffe("ZK10131", "Archive encryption key must be 32 bytes hex encoded")
	MsgArchiveStoreFailed      = ffe("ZK10132", "Failed to write to the content store")
	MsgArchiveFetchFailed      = ffe("ZK10133", "Failed to read '%s' from the content store")
	MsgArchiveNotFound         = ffe("ZK10134", "Content '%s' not found")
	MsgArchiveInvalidCID       = ffe("ZK10135", "Invalid content address '%s'")
	MsgArchiveMalformed        = ffe("ZK10136", "Content '%s' is not a valid archive document")
	MsgUnknownArchiveType      = ffe("ZK10137", "Unknown archive type '%s'")
	MsgMissingConfig           = ffe("ZK10138", "Missing required configuration '%s'")
	MsgNoCredentials           = ffe("ZK10139", "At least one credential is required")
	MsgArchiveNotConfigured    = ffe("ZK10140", "No archive encryption key has been configured")
	MsgInvalidCredentialFlag   = ffe("ZK10141", "Invalid credential '%s', expected name=value")
	MsgNotFound404             = ffe("ZK10142", "Not Found. 404 Error", http.StatusNotFound)
	MsgUnsupportedCircuit      = ffe("ZK10143", "Configured circuit version %d is not supported, this build proves version %d")
)
