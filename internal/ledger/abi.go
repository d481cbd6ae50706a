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

package ledger

const (
	MethodVerify             = "verify"
	MethodVerifiedUsers      = "verifiedUsers"
	MethodRevokeVerification = "revokeVerification"
	EventVerificationResult  = "VerificationResult"
)

// VerifierABI is the interface of the identity verifier contract.
const VerifierABI = `[
	{
		"inputs": [
			{ "internalType": "uint256[2]", "name": "a", "type": "uint256[2]" },
			{ "internalType": "uint256[2][2]", "name": "b", "type": "uint256[2][2]" },
			{ "internalType": "uint256[2]", "name": "c", "type": "uint256[2]" },
			{ "internalType": "uint256[]", "name": "input", "type": "uint256[]" }
		],
		"name": "verify",
		"outputs": [{ "internalType": "bool", "name": "", "type": "bool" }],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{ "internalType": "address", "name": "", "type": "address" }],
		"name": "verifiedUsers",
		"outputs": [{ "internalType": "bool", "name": "", "type": "bool" }],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{ "internalType": "bytes32", "name": "didId", "type": "bytes32" },
			{ "internalType": "bytes32", "name": "proofId", "type": "bytes32" }
		],
		"name": "revokeVerification",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{ "indexed": true, "internalType": "address", "name": "user", "type": "address" },
			{ "indexed": false, "internalType": "bool", "name": "success", "type": "bool" }
		],
		"name": "VerificationResult",
		"type": "event"
	}
]`
