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

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type transactCall struct {
	method string
	params []interface{}
}

type fakeContract struct {
	mux      sync.Mutex
	calls    []transactCall
	txErr    error
	callOut  []interface{}
	callErr  error
	lastCall string
}

func (f *fakeContract) Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error {
	f.lastCall = method
	if f.callErr != nil {
		return f.callErr
	}
	*results = f.callOut
	return nil
}

func (f *fakeContract) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	f.calls = append(f.calls, transactCall{method: method, params: params})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.calls))}), nil
}

type fakeReceipts struct {
	receipt *types.Receipt
	misses  int
	polls   int
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.polls++
	if f.receipt == nil || f.polls <= f.misses {
		return nil, ethereum.NotFound
	}
	r := *f.receipt
	r.TxHash = txHash
	return &r, nil
}

func testABI(t *testing.T) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(VerifierABI))
	require.NoError(t, err)
	return parsed
}

func resultLog(t *testing.T, parsed abi.ABI, address common.Address, success bool) *types.Log {
	event := parsed.Events[EventVerificationResult]
	data, err := event.Inputs.NonIndexed().Pack(success)
	require.NoError(t, err)
	user := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	return &types.Log{
		Address: address,
		Topics:  []common.Hash{event.ID, common.BytesToHash(user.Bytes())},
		Data:    data,
	}
}

func noopTransactor(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{Context: ctx}, nil
}

func newTestLedger(t *testing.T, contract Contract, receipts ReceiptSource) *ethLedger {
	return newEthLedger(contractAddress, testABI(t), contract, receipts, noopTransactor, &Options{
		ReceiptTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
}

func testArtifact() *messages.ProofArtifact {
	return &messages.ProofArtifact{
		Proof: messages.ProofPoints{
			A: [2]string{"1", "2"},
			B: [2][2]string{{"3", "4"}, {"5", "6"}},
			C: [2]string{"7", "8"},
		},
		PublicSignals: []string{"1", "18", "0", "0", "1", "0", "0", "12345", "1", "0", "0"},
	}
}

func TestSubmitProofSuccess(t *testing.T) {
	parsed := testABI(t)
	contract := &fakeContract{}
	receipts := &fakeReceipts{
		misses: 2,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(10),
			Logs:        []*types.Log{resultLog(t, parsed, contractAddress, true)},
		},
	}
	l := newTestLedger(t, contract, receipts)

	ok, err := l.SubmitProof(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, receipts.polls)

	require.Len(t, contract.calls, 1)
	call := contract.calls[0]
	assert.Equal(t, MethodVerify, call.method)
	require.Len(t, call.params, 4)
	b := call.params[1].([2][2]*big.Int)
	assert.Equal(t, int64(4), b[0][0].Int64())
	assert.Equal(t, int64(3), b[0][1].Int64())
	input := call.params[3].([]*big.Int)
	assert.Len(t, input, 11)
}

func TestSubmitProofFailedVerificationEvent(t *testing.T) {
	parsed := testABI(t)
	l := newTestLedger(t, &fakeContract{}, &fakeReceipts{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(11),
			Logs:        []*types.Log{resultLog(t, parsed, contractAddress, false)},
		},
	})
	ok, err := l.SubmitProof(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitProofIgnoresForeignLogs(t *testing.T) {
	parsed := testABI(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000001")
	l := newTestLedger(t, &fakeContract{}, &fakeReceipts{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(12),
			Logs:        []*types.Log{resultLog(t, parsed, other, true)},
		},
	})
	_, err := l.SubmitProof(context.Background(), testArtifact())
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Regexp(t, "VerificationResult", err)
}

func TestSubmitProofReverted(t *testing.T) {
	l := newTestLedger(t, &fakeContract{}, &fakeReceipts{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(13)},
	})
	ok, err := l.SubmitProof(context.Background(), testArtifact())
	assert.False(t, ok)
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Regexp(t, "reverted", err)
}

func TestSubmitProofReceiptTimeout(t *testing.T) {
	receipts := &fakeReceipts{}
	l := newTestLedger(t, &fakeContract{}, receipts)
	l.receiptTimeout = 30 * time.Millisecond

	ok, err := l.SubmitProof(context.Background(), testArtifact())
	assert.False(t, ok)
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Regexp(t, "outcome unknown", err)
	assert.Greater(t, receipts.polls, 1)
}

func TestSubmitProofContextCancelled(t *testing.T) {
	l := newTestLedger(t, &fakeContract{}, &fakeReceipts{})
	l.receiptTimeout = time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := l.SubmitProof(ctx, testArtifact())
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSubmitProofTransactError(t *testing.T) {
	l := newTestLedger(t, &fakeContract{txErr: errors.New("pop")}, &fakeReceipts{})
	_, err := l.SubmitProof(context.Background(), testArtifact())
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Regexp(t, "pop", err)
}

func TestSubmitProofBadEncoding(t *testing.T) {
	contract := &fakeContract{}
	l := newTestLedger(t, contract, &fakeReceipts{})
	artifact := testArtifact()
	artifact.PublicSignals[0] = "-1"
	_, err := l.SubmitProof(context.Background(), artifact)
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
	assert.Empty(t, contract.calls)
}

func TestNoSigningKey(t *testing.T) {
	transactor, err := newTransactor(context.Background(), nil, &Options{})
	require.NoError(t, err)
	contract := &fakeContract{}
	l := newEthLedger(contractAddress, testABI(t), contract, &fakeReceipts{}, transactor, &Options{})
	_, err = l.Revoke(context.Background(), "0x"+strings.Repeat("ab", 32), "0x"+strings.Repeat("cd", 32))
	assert.ErrorIs(t, err, msgs.ErrLedger)
	assert.Empty(t, contract.calls)
}

func TestBadSigningKey(t *testing.T) {
	_, err := newTransactor(context.Background(), nil, &Options{SigningKey: "0xzz"})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
}

type staticChainID struct {
	calls int
}

func (s *staticChainID) ChainID(ctx context.Context) (*big.Int, error) {
	s.calls++
	return big.NewInt(1337), nil
}

func TestSigningKeyChainIDLookedUpOnce(t *testing.T) {
	chain := &staticChainID{}
	transactor, err := newTransactor(context.Background(), chain, &Options{
		SigningKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		GasLimit:   500000,
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		opts, err := transactor(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", opts.From.Hex())
		assert.Equal(t, uint64(500000), opts.GasLimit)
	}
	assert.Equal(t, 1, chain.calls)
}

func TestRevoke(t *testing.T) {
	contract := &fakeContract{}
	l := newTestLedger(t, contract, &fakeReceipts{
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(14)},
	})
	did := "0x" + strings.Repeat("01", 32)
	proof := "0x" + strings.Repeat("02", 32)
	ok, err := l.Revoke(context.Background(), did, proof)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, contract.calls, 1)
	assert.Equal(t, MethodRevokeVerification, contract.calls[0].method)
	p := contract.calls[0].params[1].([32]byte)
	assert.Equal(t, byte(2), p[31])
}

func TestRevokeMalformedIDs(t *testing.T) {
	contract := &fakeContract{}
	l := newTestLedger(t, contract, &fakeReceipts{})
	_, err := l.Revoke(context.Background(), "0x1234", "0x"+strings.Repeat("02", 32))
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
	_, err = l.Revoke(context.Background(), "0x"+strings.Repeat("01", 32), "nothex")
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
	assert.Empty(t, contract.calls)
}

func TestCheckStatusFakeContract(t *testing.T) {
	contract := &fakeContract{callOut: []interface{}{true}}
	l := newTestLedger(t, contract, &fakeReceipts{})
	ok, err := l.CheckStatus(context.Background(), "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MethodVerifiedUsers, contract.lastCall)

	_, err = l.CheckStatus(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)

	contract.callErr = errors.New("execution reverted")
	_, err = l.CheckStatus(context.Background(), "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	assert.ErrorIs(t, err, msgs.ErrLedger)
}

type rpcRequest struct {
	ID      json.RawMessage `json:"id"`
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  interface{}     `json:"params"`
}

func mockRPCServer(t *testing.T, verified map[common.Address]bool) *httptest.Server {
	parsed := testABI(t)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)

		if req.Method != "eth_call" {
			http.Error(w, fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"unsupported"}}`, req.ID), 200)
			return
		}
		params := req.Params.([]interface{})[0].(map[string]interface{})
		data, ok := params["input"].(string)
		if !ok {
			data = params["data"].(string)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
		assert.NoError(t, err)
		method, err := parsed.MethodById(raw[:4])
		assert.NoError(t, err)
		assert.Equal(t, MethodVerifiedUsers, method.Name)

		args, err := method.Inputs.Unpack(raw[4:])
		assert.NoError(t, err)
		result, err := method.Outputs.Pack(verified[args[0].(common.Address)])
		assert.NoError(t, err)
		msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":"0x%s"}`, req.ID, hex.EncodeToString(result))
		_, err = w.Write([]byte(msg))
		assert.NoError(t, err)
	}))
}

func TestCheckStatusJSONRPC(t *testing.T) {
	user := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	server := mockRPCServer(t, map[common.Address]bool{user: true})
	defer server.Close()

	client, err := NewClient(context.Background(), &Options{
		EthURL:          server.URL,
		ContractAddress: contractAddress.Hex(),
	})
	require.NoError(t, err)

	ok, err := client.CheckStatus(context.Background(), user.Hex())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CheckStatus(context.Background(), "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewClientInvalidAddress(t *testing.T) {
	_, err := NewClient(context.Background(), &Options{EthURL: "http://localhost:8545", ContractAddress: "0x1234"})
	assert.ErrorIs(t, err, msgs.ErrInvalidInput)
}

func TestEncodeProofAndBytes32(t *testing.T) {
	a, b, c, input, err := EncodeProof(testArtifact())
	require.NoError(t, err)
	assert.Equal(t, int64(1), a[0].Int64())
	assert.Equal(t, [2]int64{4, 3}, [2]int64{b[0][0].Int64(), b[0][1].Int64()})
	assert.Equal(t, [2]int64{6, 5}, [2]int64{b[1][0].Int64(), b[1][1].Int64()})
	assert.Equal(t, int64(8), c[1].Int64())
	assert.Equal(t, int64(12345), input[7].Int64())

	bad := testArtifact()
	bad.Proof.C[0] = "0x10"
	_, _, _, _, err = EncodeProof(bad)
	assert.Error(t, err)

	v, err := Bytes32("0x" + strings.Repeat("ff", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), v[0])
	_, err = Bytes32("0x" + strings.Repeat("ff", 31))
	assert.Regexp(t, "expected 32 bytes", err)
}
