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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	dir := t.TempDir()
	cfg := fmt.Sprintf("database:\n  path: %s\narchive:\n  type: memory\n%s", filepath.Join(dir, "db"), extra)
	cfgFile := filepath.Join(dir, "zkid.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o644))
	return cfgFile
}

func runCmd(t *testing.T, args ...string) (string, error) {
	rootCmd := newRootCmd()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDIDCommands(t *testing.T) {
	cfgFile := writeConfig(t, "")

	out, err := runCmd(t, "did", "create", "-f", cfgFile, "-c", "age=30", "-c", "residency=NY")
	require.NoError(t, err)
	var created messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, float64(30), created.Credentials["age"])
	assert.Equal(t, "NY", created.Credentials["residency"])

	out, err = runCmd(t, "did", "list", "-f", cfgFile)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{created.ID}, ids)

	out, err = runCmd(t, "did", "get", created.ID, "-f", cfgFile)
	require.NoError(t, err)
	var fetched messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.NotContains(t, out, "secret")

	out, err = runCmd(t, "status", "-f", cfgFile)
	require.NoError(t, err)
	var status messages.OverallStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.DIDs)
	assert.False(t, status.LedgerEnabled)
}

func TestDIDGetUnknown(t *testing.T) {
	cfgFile := writeConfig(t, "")
	_, err := runCmd(t, "did", "get", "did:zkid:unknown", "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrNotFound))
}

func TestDIDCreateBadCredential(t *testing.T) {
	cfgFile := writeConfig(t, "")
	_, err := runCmd(t, "did", "create", "-f", cfgFile, "-c", "novalue")
	assert.True(t, errors.Is(err, msgs.ErrInvalidInput))
}

func TestVerifyWithoutLedger(t *testing.T) {
	cfgFile := writeConfig(t, "")
	out, err := runCmd(t, "did", "create", "-f", cfgFile, "-c", "age=30")
	require.NoError(t, err)
	var created messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	_, err = runCmd(t, "verify", "multiple", created.ID, "--age", "18", "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrLedger))

	_, err = runCmd(t, "verify", "attribute", created.ID, "income", "--threshold", "1", "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrMissingAttribute))
}

func TestLedgerCommandsNeedContract(t *testing.T) {
	cfgFile := writeConfig(t, "")
	_, err := runCmd(t, "status", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrInvalidInput))
	assert.Contains(t, err.Error(), "ledger.contractAddress")

	_, err = runCmd(t, "revoke", "did:zkid:x", "0x01", "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrInvalidInput))
}

func TestBackupNeedsArchiveKey(t *testing.T) {
	cfgFile := writeConfig(t, "")
	out, err := runCmd(t, "did", "create", "-f", cfgFile, "-c", "age=30")
	require.NoError(t, err)
	var created messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	_, err = runCmd(t, "did", "backup", created.ID, "-f", cfgFile)
	assert.True(t, errors.Is(err, msgs.ErrInvalidInput))
}

func TestBackupToMemoryArchive(t *testing.T) {
	cfgFile := writeConfig(t, fmt.Sprintf("  encryptionKey: \"%064x\"\n", 7))
	out, err := runCmd(t, "did", "create", "-f", cfgFile, "-c", "age=30")
	require.NoError(t, err)
	var created messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	out, err = runCmd(t, "did", "backup", created.ID, "-f", cfgFile)
	require.NoError(t, err)
	var backup messages.BackupResponse
	require.NoError(t, json.Unmarshal([]byte(out), &backup))
	assert.Equal(t, created.ID, backup.DIDID)
	assert.NotEmpty(t, backup.CID)
}

func TestDefaultConfigPersistsDIDs(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runCmd(t, "did", "create", "-c", "age=30")
	require.NoError(t, err)
	var created messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	out, err = runCmd(t, "did", "get", created.ID)
	require.NoError(t, err)
	var fetched messages.DIDView
	require.NoError(t, json.Unmarshal([]byte(out), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCmd(t, "did", "list", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCredentials(t *testing.T) {
	creds, err := parseCredentials(context.Background(), []string{"age=25", "income=50000", "residency=NY", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, messages.Credentials{
		"age":       float64(25),
		"income":    float64(50000),
		"residency": "NY",
		"note":      "a=b",
	}, creds)

	_, err = parseCredentials(context.Background(), []string{"=1"})
	assert.True(t, errors.Is(err, msgs.ErrInvalidInput))
}
