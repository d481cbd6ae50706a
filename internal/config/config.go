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

package config

import (
	"context"
	"fmt"

	ffconfig "github.com/hyperledger/firefly-common/pkg/config"
	"github.com/hyperledger/firefly-common/pkg/httpserver"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

var APIConfig = ffconfig.RootSection("api")
var CORSConfig = ffconfig.RootSection("cors")
var MetricsConfig = ffconfig.RootSection("metrics")
var ZKIDConfig = ffconfig.RootSection("zkid")
var LedgerConfig = ffconfig.RootSection("ledger")
var ArchiveConfig = ffconfig.RootSection("archive")
var DatabaseConfig = ffconfig.RootSection("database")

var APIRequestTimeout = "requestTimeout"
var APIRequestTimeoutMax = "requestMaxTimeout"

var MetricsEnabled = "enabled"
var MetricsPath = "path"

var ZKIDKeysDir = "keysDir"
var ZKIDCircuitVersion = "circuitVersion"

var LedgerEthURL = "ethUrl"
var LedgerContractAddress = "contractAddress"
var LedgerSigningKey = "signingKey"
var LedgerChainID = "chainId"
var LedgerGasLimit = "gasLimit"
var LedgerReceiptTimeout = "receiptTimeout"
var LedgerReceiptPollInterval = "receiptPollInterval"

var ArchiveType = "type"
var ArchiveIPFSURL = "ipfsURL"
var ArchiveEncryptionKey = "encryptionKey"

var DatabasePath = "path"

const (
	ArchiveTypeIPFS   = "ipfs"
	ArchiveTypeMemory = "memory"
)

func InitConfig() {
	httpserver.InitHTTPConfig(APIConfig, 8000)
	httpserver.InitCORSConfig(CORSConfig)
	httpserver.InitHTTPConfig(MetricsConfig, 6000)

	APIConfig.AddKnownKey(APIRequestTimeout, "120s")
	APIConfig.AddKnownKey(APIRequestTimeoutMax, "10m")

	MetricsConfig.AddKnownKey(MetricsEnabled, false)
	MetricsConfig.AddKnownKey(MetricsPath, "/metrics")

	ZKIDConfig.AddKnownKey(ZKIDKeysDir, "./keys")
	ZKIDConfig.AddKnownKey(ZKIDCircuitVersion, 1)

	LedgerConfig.AddKnownKey(LedgerEthURL, "http://localhost:8545")
	LedgerConfig.AddKnownKey(LedgerContractAddress, "")
	LedgerConfig.AddKnownKey(LedgerSigningKey, "")
	LedgerConfig.AddKnownKey(LedgerChainID, 0)
	LedgerConfig.AddKnownKey(LedgerGasLimit, 0)
	LedgerConfig.AddKnownKey(LedgerReceiptTimeout, "2m")
	LedgerConfig.AddKnownKey(LedgerReceiptPollInterval, "500ms")

	ArchiveConfig.AddKnownKey(ArchiveType, ArchiveTypeIPFS)
	ArchiveConfig.AddKnownKey(ArchiveIPFSURL, "http://localhost:5001")
	ArchiveConfig.AddKnownKey(ArchiveEncryptionKey, "")

	DatabaseConfig.AddKnownKey(DatabasePath, "./data")
}

// ValidateLedger checks the keys that every ledger-backed command needs.
func ValidateLedger(ctx context.Context) error {
	for _, key := range []string{LedgerEthURL, LedgerContractAddress} {
		if LedgerConfig.GetString(key) == "" {
			return msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgMissingConfig, fmt.Sprintf("ledger.%s", key))
		}
	}
	return nil
}
