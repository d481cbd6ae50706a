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

package messages

import "github.com/iden3/go-rapidsnark/types"

const (
	AttributeAge       = "age"
	AttributeIncome    = "income"
	AttributeResidency = "residency"
)

// Attributes lists the attributes the circuit can reason about, in public
// signal order.
var Attributes = []string{AttributeAge, AttributeIncome, AttributeResidency}

type Credentials map[string]interface{}

// DIDRecord is the full record held by the credential store. The secret is
// serialized here because this type is also the durable store format; use
// View() for anything leaving the process.
type DIDRecord struct {
	ID          string      `json:"id"`
	Credentials Credentials `json:"credentials"`
	Secret      string      `json:"secret"`
	Created     int64       `json:"created"`
	Updated     int64       `json:"updated"`
}

type DIDView struct {
	ID          string      `json:"id"`
	Credentials Credentials `json:"credentials"`
	Created     int64       `json:"created"`
	Updated     int64       `json:"updated"`
}

func (r *DIDRecord) View() *DIDView {
	return &DIDView{
		ID:          r.ID,
		Credentials: r.Credentials,
		Created:     r.Created,
		Updated:     r.Updated,
	}
}

type CreateDIDRequest struct {
	Credentials Credentials `json:"credentials"`
}

// Conditions selects the predicates of a verification request. A nil field
// means the attribute is not checked.
type Conditions struct {
	AgeThreshold      *int64  `json:"ageThreshold,omitempty"`
	IncomeThreshold   *int64  `json:"incomeThreshold,omitempty"`
	ExpectedResidency *string `json:"expectedResidency,omitempty"`
}

func (c *Conditions) Empty() bool {
	return c == nil || (c.AgeThreshold == nil && c.IncomeThreshold == nil && c.ExpectedResidency == nil)
}

// AttributeCondition is the predicate for a single attribute request:
// Threshold for numeric attributes, Expected for residency.
type AttributeCondition struct {
	Threshold *int64  `json:"threshold,omitempty"`
	Expected  *string `json:"expected,omitempty"`
}

type ProofPoints struct {
	A [2]string    `json:"a"`
	B [2][2]string `json:"b"`
	C [2]string    `json:"c"`
}

type ProofArtifact struct {
	Proof         ProofPoints `json:"proof"`
	PublicSignals []string    `json:"publicSignals"`
}

// VerificationResult carries the submitted proof in the snarkjs layout so
// that a relying party can check it off chain.
type VerificationResult struct {
	Success    bool             `json:"success"`
	ProofID    string           `json:"proofId"`
	Attributes map[string]*bool `json:"attributes"`
	Proof      *types.ZKProof   `json:"proof,omitempty"`
	RecordCID  string           `json:"recordCid,omitempty"`
}

type VerificationRecord struct {
	DIDID     string              `json:"didId"`
	Timestamp int64               `json:"timestamp"`
	Result    *VerificationResult `json:"result"`
}

type RevocationRecord struct {
	DIDID     string `json:"didId"`
	ProofID   string `json:"proofId"`
	Timestamp int64  `json:"timestamp"`
	Root      string `json:"root"`
}

type AttributeVerification struct {
	DIDID     string `json:"didId"`
	Attribute string `json:"attribute"`
	Verified  bool   `json:"verified"`
}

type RevokeRequest struct {
	ProofID string `json:"proofId"`
}

type RevokeResponse struct {
	ProofID string `json:"proofId"`
	Revoked bool   `json:"revoked"`
}

type RestoreRequest struct {
	CID string `json:"cid"`
}

type BackupResponse struct {
	DIDID string `json:"didId"`
	CID   string `json:"cid"`
}

type LedgerStatus struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

type OverallStatus struct {
	Status         string `json:"status"`
	CircuitVersion int    `json:"circuitVersion"`
	DIDs           int    `json:"dids"`
	RevocationRoot string `json:"revocationRoot"`
	LedgerEnabled  bool   `json:"ledgerEnabled"`
}
