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

package apiserver

import (
	"net/http"

	"github.com/hyperledger/firefly-common/pkg/ffapi"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
)

type VerifierRequest struct {
	vm services.VerificationManager
}

type VerifierExtensions struct {
	Handle func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error)
}

var StatusRoute = &ffapi.Route{
	Name:            "Status",
	Path:            "status",
	Method:          http.MethodGet,
	Description:     "Status of the verifier server",
	JSONOutputValue: func() interface{} { return &messages.OverallStatus{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.Status(r.Req.Context())
		},
	},
}

var CreateDIDRoute = &ffapi.Route{
	Name:            "CreateDID",
	Path:            "dids",
	Method:          http.MethodPost,
	Description:     "Create a DID bound to a set of credentials",
	JSONInputValue:  func() interface{} { return &messages.CreateDIDRequest{} },
	JSONOutputValue: func() interface{} { return &messages.DIDView{} },
	JSONOutputCodes: []int{http.StatusCreated},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.CreateDID(r.Req.Context(), r.Input.(*messages.CreateDIDRequest))
		},
	},
}

var ListDIDsRoute = &ffapi.Route{
	Name:            "ListDIDs",
	Path:            "dids",
	Method:          http.MethodGet,
	Description:     "List the ids of all DIDs",
	JSONOutputValue: func() interface{} { return []string{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.ListDIDs(r.Req.Context())
		},
	},
}

var GetDIDRoute = &ffapi.Route{
	Name:        "GetDID",
	Path:        "dids/{did}",
	Method:      http.MethodGet,
	Description: "Get a DID and its credentials",
	PathParams: []*ffapi.PathParam{
		{Name: "did", Description: "The DID id"},
	},
	JSONOutputValue: func() interface{} { return &messages.DIDView{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.GetDID(r.Req.Context(), r.PP["did"])
		},
	},
}

var VerifyMultipleRoute = &ffapi.Route{
	Name:        "VerifyMultiple",
	Path:        "dids/{did}/verify",
	Method:      http.MethodPost,
	Description: "Prove and verify several conditions with a single proof",
	PathParams: []*ffapi.PathParam{
		{Name: "did", Description: "The DID id"},
	},
	JSONInputValue:  func() interface{} { return &messages.Conditions{} },
	JSONOutputValue: func() interface{} { return &messages.VerificationResult{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.VerifyMultiple(r.Req.Context(), r.PP["did"], r.Input.(*messages.Conditions))
		},
	},
}

var VerifyAttributeRoute = &ffapi.Route{
	Name:        "VerifyAttribute",
	Path:        "dids/{did}/verify/{attribute}",
	Method:      http.MethodPost,
	Description: "Prove and verify a condition on one attribute",
	PathParams: []*ffapi.PathParam{
		{Name: "did", Description: "The DID id"},
		{Name: "attribute", Description: "One of age, income or residency"},
	},
	JSONInputValue:  func() interface{} { return &messages.AttributeCondition{} },
	JSONOutputValue: func() interface{} { return &messages.AttributeVerification{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			did, attribute := r.PP["did"], r.PP["attribute"]
			verified, err := sr.vm.VerifyAttribute(r.Req.Context(), did, attribute, r.Input.(*messages.AttributeCondition))
			if err != nil {
				return nil, err
			}
			return &messages.AttributeVerification{DIDID: did, Attribute: attribute, Verified: verified}, nil
		},
	},
}

var RevokeRoute = &ffapi.Route{
	Name:        "Revoke",
	Path:        "dids/{did}/revoke",
	Method:      http.MethodPost,
	Description: "Revoke a verification. Revoking an already revoked proof succeeds",
	PathParams: []*ffapi.PathParam{
		{Name: "did", Description: "The DID id"},
	},
	JSONInputValue:  func() interface{} { return &messages.RevokeRequest{} },
	JSONOutputValue: func() interface{} { return &messages.RevokeResponse{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			proofID := r.Input.(*messages.RevokeRequest).ProofID
			revoked, err := sr.vm.Revoke(r.Req.Context(), r.PP["did"], proofID)
			if err != nil {
				return nil, err
			}
			return &messages.RevokeResponse{ProofID: proofID, Revoked: revoked}, nil
		},
	},
}

var BackupRoute = &ffapi.Route{
	Name:        "Backup",
	Path:        "dids/{did}/backup",
	Method:      http.MethodPost,
	Description: "Write an encrypted backup of the DID to the archive",
	PathParams: []*ffapi.PathParam{
		{Name: "did", Description: "The DID id"},
	},
	JSONInputValue:  func() interface{} { return &struct{}{} },
	JSONOutputValue: func() interface{} { return &messages.BackupResponse{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.Backup(r.Req.Context(), r.PP["did"])
		},
	},
}

var RestoreRoute = &ffapi.Route{
	Name:            "Restore",
	Path:            "restore",
	Method:          http.MethodPost,
	Description:     "Restore a DID from an archived backup",
	JSONInputValue:  func() interface{} { return &messages.RestoreRequest{} },
	JSONOutputValue: func() interface{} { return &messages.DIDView{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.Restore(r.Req.Context(), r.Input.(*messages.RestoreRequest).CID)
		},
	},
}

var VerificationRecordRoute = &ffapi.Route{
	Name:        "VerificationRecord",
	Path:        "records/{cid}",
	Method:      http.MethodGet,
	Description: "Get an archived verification record",
	PathParams: []*ffapi.PathParam{
		{Name: "cid", Description: "Content address of the record"},
	},
	JSONOutputValue: func() interface{} { return &messages.VerificationRecord{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.GetVerificationRecord(r.Req.Context(), r.PP["cid"])
		},
	},
}

var LedgerStatusRoute = &ffapi.Route{
	Name:        "LedgerStatus",
	Path:        "ledger/status/{address}",
	Method:      http.MethodGet,
	Description: "Check whether an address is recorded as verified on chain",
	PathParams: []*ffapi.PathParam{
		{Name: "address", Description: "Ethereum address of the user"},
	},
	JSONOutputValue: func() interface{} { return &messages.LedgerStatus{} },
	JSONOutputCodes: []int{http.StatusOK},
	Extensions: &VerifierExtensions{
		Handle: func(r *ffapi.APIRequest, sr *VerifierRequest) (output interface{}, err error) {
			return sr.vm.CheckStatus(r.Req.Context(), r.PP["address"])
		},
	},
}

var Routes []*ffapi.Route

func init() {
	Routes = append(Routes, StatusRoute)
	Routes = append(Routes, CreateDIDRoute)
	Routes = append(Routes, ListDIDsRoute)
	Routes = append(Routes, GetDIDRoute)
	Routes = append(Routes, VerifyMultipleRoute)
	Routes = append(Routes, VerifyAttributeRoute)
	Routes = append(Routes, RevokeRoute)
	Routes = append(Routes, BackupRoute)
	Routes = append(Routes, RestoreRoute)
	Routes = append(Routes, VerificationRecordRoute)
	Routes = append(Routes, LedgerStatusRoute)
}
