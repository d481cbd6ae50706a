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
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/metrics"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
)

// Client talks to the identity verifier contract. A nil error from
// SubmitProof or Revoke means the transaction was mined and succeeded.
type Client interface {
	SubmitProof(ctx context.Context, artifact *messages.ProofArtifact) (bool, error)
	CheckStatus(ctx context.Context, address string) (bool, error)
	Revoke(ctx context.Context, didID, proofID string) (bool, error)
}

// Contract is the subset of *bind.BoundContract used here.
type Contract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Options struct {
	EthURL          string
	ContractAddress string
	SigningKey      string
	ChainID         int64
	GasLimit        uint64
	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
}

type transactorFunc func(ctx context.Context) (*bind.TransactOpts, error)

type ethLedger struct {
	address        common.Address
	abi            abi.ABI
	contract       Contract
	receipts       ReceiptSource
	transactor     transactorFunc
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

func NewClient(ctx context.Context, opts *Options) (Client, error) {
	if !common.IsHexAddress(opts.ContractAddress) {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgLedgerInvalidAddress, opts.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(VerifierABI))
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, opts.EthURL)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerConnect, opts.EthURL)
	}

	address := common.HexToAddress(opts.ContractAddress)
	contract := bind.NewBoundContract(address, parsed, client, client, client)

	transactor, err := newTransactor(ctx, client, opts)
	if err != nil {
		return nil, err
	}
	log.L(ctx).Infof("Ledger client for contract %s at %s", address.Hex(), opts.EthURL)
	return newEthLedger(address, parsed, contract, client, transactor, opts), nil
}

func newEthLedger(address common.Address, parsed abi.ABI, contract Contract, receipts ReceiptSource, transactor transactorFunc, opts *Options) *ethLedger {
	l := &ethLedger{
		address:        address,
		abi:            parsed,
		contract:       contract,
		receipts:       receipts,
		transactor:     transactor,
		receiptTimeout: opts.ReceiptTimeout,
		pollInterval:   opts.PollInterval,
	}
	if l.receiptTimeout <= 0 {
		l.receiptTimeout = 2 * time.Minute
	}
	if l.pollInterval <= 0 {
		l.pollInterval = 500 * time.Millisecond
	}
	return l
}

type chainIDSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// newTransactor signs with the configured key. The chain id is looked up
// once, on first use, when it is not configured.
func newTransactor(ctx context.Context, chain chainIDSource, opts *Options) (transactorFunc, error) {
	if opts.SigningKey == "" {
		return func(ctx context.Context) (*bind.TransactOpts, error) {
			return nil, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerNoSigner)
		}, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.SigningKey, "0x"))
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgLedgerNoSigner)
	}

	var mux sync.Mutex
	var chainID *big.Int
	if opts.ChainID > 0 {
		chainID = big.NewInt(opts.ChainID)
	}
	gasLimit := opts.GasLimit
	return func(ctx context.Context) (*bind.TransactOpts, error) {
		mux.Lock()
		defer mux.Unlock()
		if chainID == nil {
			id, err := chain.ChainID(ctx)
			if err != nil {
				return nil, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerCall, "eth_chainId")
			}
			chainID = id
		}
		return keyedTransactor(ctx, key, chainID, gasLimit)
	}, nil
}

func keyedTransactor(ctx context.Context, key *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerNoSigner)
	}
	auth.Context = ctx
	auth.GasLimit = gasLimit
	return auth, nil
}

// SubmitProof sends the proof to verify() and reports the success flag of
// the VerificationResult event in the mined receipt.
func (l *ethLedger) SubmitProof(ctx context.Context, artifact *messages.ProofArtifact) (bool, error) {
	a, b, c, input, err := EncodeProof(artifact)
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgMalformedArtifact, "encoding")
	}

	receipt, err := l.transact(ctx, MethodVerify, a, b, c, input)
	if err != nil {
		return false, err
	}

	success, found, err := l.verificationOutcome(receipt)
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerNoEvent, receipt.TxHash.Hex())
	}
	if !found {
		return false, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerNoEvent, receipt.TxHash.Hex())
	}
	log.L(ctx).Infof("Proof verification tx %s mined in block %s: success=%t", receipt.TxHash.Hex(), receipt.BlockNumber, success)
	return success, nil
}

func (l *ethLedger) CheckStatus(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgLedgerInvalidAddress, address)
	}
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodVerifiedUsers, common.HexToAddress(address))
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerCall, MethodVerifiedUsers)
	}
	if len(out) != 1 {
		return false, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerCall, MethodVerifiedUsers)
	}
	verified := *abi.ConvertType(out[0], new(bool)).(*bool)
	return verified, nil
}

func (l *ethLedger) Revoke(ctx context.Context, didID, proofID string) (bool, error) {
	did, err := Bytes32(didID)
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgDIDNotFound, didID)
	}
	proof, err := Bytes32(proofID)
	if err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgInvalidProofID, proofID)
	}
	if _, err := l.transact(ctx, MethodRevokeVerification, did, proof); err != nil {
		return false, err
	}
	return true, nil
}

// transact submits a transaction and waits for a successful receipt.
func (l *ethLedger) transact(ctx context.Context, method string, params ...interface{}) (*types.Receipt, error) {
	opts, err := l.transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := l.contract.Transact(opts, method, params...)
	if err != nil {
		metrics.LedgerTransaction(method, "submit_failed")
		return nil, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerTransact, method)
	}
	log.L(ctx).Debugf("Submitted %s tx %s", method, tx.Hash().Hex())

	receipt, err := l.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		metrics.LedgerTransaction(method, "unknown")
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.LedgerTransaction(method, "reverted")
		return nil, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerReverted, tx.Hash().Hex())
	}
	metrics.LedgerTransaction(method, "mined")
	return receipt, nil
}

// waitForReceipt polls with exponential backoff until the receipt shows up
// or the receipt timeout elapses. A timeout means the outcome is unknown.
func (l *ethLedger) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.pollInterval
	bo.MaxInterval = 8 * l.pollInterval
	bo.MaxElapsedTime = l.receiptTimeout

	var receipt *types.Receipt
	err := backoff.Retry(func() error {
		r, err := l.receipts.TransactionReceipt(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.L(ctx).Tracef("Receipt for %s not available yet: %s", hash.Hex(), err)
			return err
		}
		receipt = r
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrLedger, err, msgs.MsgLedgerReceiptTimeout, hash.Hex(), l.receiptTimeout)
	}
	return receipt, nil
}

func (l *ethLedger) verificationOutcome(receipt *types.Receipt) (success bool, found bool, err error) {
	event := l.abi.Events[EventVerificationResult]
	for _, entry := range receipt.Logs {
		if entry == nil || len(entry.Topics) == 0 || entry.Topics[0] != event.ID || entry.Address != l.address {
			continue
		}
		out := make(map[string]interface{})
		if err := l.abi.UnpackIntoMap(out, EventVerificationResult, entry.Data); err != nil {
			return false, false, err
		}
		success, _ = out["success"].(bool)
		return success, true, nil
	}
	return false, false, nil
}
