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

package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/archive"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/credentials"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/kvstore"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/ledger"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/messages"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/metrics"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/proofs"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/revocation"
)

// Verification attempt states
const (
	StateRequested        = "Requested"
	StateProofBuilding    = "ProofBuilding"
	StateProofBuilt       = "ProofBuilt"
	StateOnChainSubmitted = "OnChainSubmitted"
	StateConfirmed        = "Confirmed"
	StateRejected         = "Rejected"
)

const (
	kindAttribute = "attribute"
	kindMultiple  = "multiple"
)

type VerificationManager interface {
	Status(ctx context.Context) (*messages.OverallStatus, error)
	CreateDID(ctx context.Context, req *messages.CreateDIDRequest) (*messages.DIDView, error)
	GetDID(ctx context.Context, didID string) (*messages.DIDView, error)
	ListDIDs(ctx context.Context) ([]string, error)
	VerifyAttribute(ctx context.Context, didID, attribute string, cond *messages.AttributeCondition) (bool, error)
	VerifyMultiple(ctx context.Context, didID string, conds *messages.Conditions) (*messages.VerificationResult, error)
	Revoke(ctx context.Context, didID, proofID string) (bool, error)
	CheckStatus(ctx context.Context, address string) (*messages.LedgerStatus, error)
	Backup(ctx context.Context, didID string) (*messages.BackupResponse, error)
	Restore(ctx context.Context, cid string) (*messages.DIDView, error)
	GetVerificationRecord(ctx context.Context, cid string) (*messages.VerificationRecord, error)
	Close()
}

type Prover interface {
	Prove(ctx context.Context, in *proofs.CircuitInput) (*messages.ProofArtifact, error)
}

type Archiver interface {
	Store(ctx context.Context, rec *messages.DIDRecord) (string, error)
	Retrieve(ctx context.Context, cid string) (*messages.DIDRecord, error)
	StoreVerificationRecord(ctx context.Context, rec *messages.VerificationRecord) (string, error)
	GetVerificationRecord(ctx context.Context, cid string) (*messages.VerificationRecord, error)
	StoreRevocationRecord(ctx context.Context, rec *messages.RevocationRecord) (string, error)
}

type proverLoader func(ctx context.Context) (Prover, error)

// verificationManager coordinates the credential store, the prover, the
// ledger and the archive.
type verificationManager struct {
	store    *credentials.Store
	registry *revocation.Registry
	ledger   ledger.Client
	archive  Archiver
	kv       kvstore.KVStore
	now      func() time.Time

	proverMux   sync.Mutex
	prover      Prover
	proverLoad  *proverLoad
	loadProver  proverLoader
	revokingMux sync.Mutex
	revoking    map[string]bool
}

// NewManager wires the manager from configuration. The ledger and the
// archive are optional: operations that need them fail until configured.
func NewManager(ctx context.Context) (VerificationManager, error) {
	if v := config.ZKIDConfig.GetInt(config.ZKIDCircuitVersion); v != proofs.CircuitVersion {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgUnsupportedCircuit, v, proofs.CircuitVersion)
	}
	kv, err := kvstore.NewKVStore(config.DatabaseConfig.GetString(config.DatabasePath))
	if err != nil {
		return nil, msgs.WrapError(ctx, msgs.ErrPersistence, err, msgs.MsgDIDPersistFailed, "*")
	}
	store := credentials.NewStore(kv)
	if err := store.Load(ctx); err != nil {
		kv.Close()
		return nil, err
	}
	registry, err := revocation.NewRegistry(ctx, kv)
	if err == nil {
		err = registry.Load(ctx)
	}
	if err != nil {
		kv.Close()
		return nil, err
	}

	var ledgerClient ledger.Client
	if config.LedgerConfig.GetString(config.LedgerContractAddress) != "" {
		ledgerClient, err = ledger.NewClient(ctx, &ledger.Options{
			EthURL:          config.LedgerConfig.GetString(config.LedgerEthURL),
			ContractAddress: config.LedgerConfig.GetString(config.LedgerContractAddress),
			SigningKey:      config.LedgerConfig.GetString(config.LedgerSigningKey),
			ChainID:         config.LedgerConfig.GetInt64(config.LedgerChainID),
			GasLimit:        uint64(config.LedgerConfig.GetInt64(config.LedgerGasLimit)),
			ReceiptTimeout:  config.LedgerConfig.GetDuration(config.LedgerReceiptTimeout),
			PollInterval:    config.LedgerConfig.GetDuration(config.LedgerReceiptPollInterval),
		})
		if err != nil {
			kv.Close()
			return nil, err
		}
	} else {
		log.L(ctx).Warnf("No ledger contract configured, verification and revocation are disabled")
	}

	var archiver Archiver
	if config.ArchiveConfig.GetString(config.ArchiveEncryptionKey) != "" {
		a, err := archive.NewFromConfig(ctx)
		if err != nil {
			kv.Close()
			return nil, err
		}
		archiver = a
	} else {
		log.L(ctx).Warnf("No archive encryption key configured, backups and audit records are disabled")
	}

	keysDir := config.ZKIDConfig.GetString(config.ZKIDKeysDir)
	loader := func(ctx context.Context) (Prover, error) {
		keys, err := proofs.LoadKeys(ctx, keysDir)
		if err != nil {
			return nil, err
		}
		return proofs.NewEngine(keys), nil
	}

	m := newManager(store, registry, loader, ledgerClient, archiver)
	m.kv = kv
	return m, nil
}

func newManager(store *credentials.Store, registry *revocation.Registry, loader proverLoader, l ledger.Client, a Archiver) *verificationManager {
	return &verificationManager{
		store:      store,
		registry:   registry,
		ledger:     l,
		archive:    a,
		now:        time.Now,
		loadProver: loader,
		revoking:   make(map[string]bool),
	}
}

func (m *verificationManager) Close() {
	if m.kv != nil {
		if err := m.kv.Close(); err != nil {
			log.L(context.Background()).Errorf("Failed to close the database: %s", err)
		}
	}
}

func (m *verificationManager) Status(ctx context.Context) (*messages.OverallStatus, error) {
	return &messages.OverallStatus{
		Status:         "OK",
		CircuitVersion: proofs.CircuitVersion,
		DIDs:           m.store.Count(),
		RevocationRoot: m.registry.Root(),
		LedgerEnabled:  m.ledger != nil,
	}, nil
}

func (m *verificationManager) CreateDID(ctx context.Context, req *messages.CreateDIDRequest) (*messages.DIDView, error) {
	if req == nil || len(req.Credentials) == 0 {
		return nil, msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgNoCredentials)
	}
	rec, err := m.store.Create(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}
	return rec.View(), nil
}

func (m *verificationManager) GetDID(ctx context.Context, didID string) (*messages.DIDView, error) {
	rec, err := m.lookup(ctx, didID)
	if err != nil {
		return nil, err
	}
	return rec.View(), nil
}

func (m *verificationManager) ListDIDs(ctx context.Context) ([]string, error) {
	return m.store.List(ctx), nil
}

func (m *verificationManager) lookup(ctx context.Context, didID string) (*messages.DIDRecord, error) {
	rec, ok := m.store.Get(ctx, didID)
	if !ok {
		return nil, msgs.NewError(ctx, msgs.ErrNotFound, msgs.MsgDIDNotFound, didID)
	}
	return rec, nil
}

// proverLoad is a key load in progress. done is closed once prover or err
// is set.
type proverLoad struct {
	done   chan struct{}
	prover Prover
	err    error
}

// getProver loads the keys on first use. Only one load runs at a time and
// the lock is not held while it runs, so callers waiting on a slow load can
// still give up when their context ends. A failed load is retried by the
// next caller.
func (m *verificationManager) getProver(ctx context.Context) (Prover, error) {
	m.proverMux.Lock()
	if m.prover != nil {
		p := m.prover
		m.proverMux.Unlock()
		return p, nil
	}
	load := m.proverLoad
	if load == nil {
		load = &proverLoad{done: make(chan struct{})}
		m.proverLoad = load
		m.proverMux.Unlock()

		load.prover, load.err = m.loadProver(ctx)
		m.proverMux.Lock()
		if load.err == nil {
			m.prover = load.prover
		}
		m.proverLoad = nil
		m.proverMux.Unlock()
		close(load.done)
		return load.prover, load.err
	}
	m.proverMux.Unlock()

	select {
	case <-load.done:
		return load.prover, load.err
	case <-ctx.Done():
		return nil, msgs.WrapError(ctx, msgs.ErrProofGeneration, ctx.Err(), msgs.MsgKeysLoadFailed, "*")
	}
}

// attempt tracks one verification request through its states.
type attempt struct {
	kind  string
	state string
}

func (a *attempt) transition(ctx context.Context, state string) {
	log.L(ctx).Infof("Verification %s -> %s", a.state, state)
	a.state = state
	if state == StateConfirmed || state == StateRejected {
		metrics.VerificationFinished(a.kind, state)
	}
}

func (a *attempt) reject(ctx context.Context, err error) error {
	log.L(ctx).Errorf("Verification rejected in state %s: %s", a.state, err)
	a.transition(ctx, StateRejected)
	return err
}

type outcome struct {
	artifact *messages.ProofArtifact
	proofID  string
	proven   map[string]*bool
	success  bool
}

func (m *verificationManager) newAttempt(ctx context.Context, kind, didID string) (context.Context, *attempt) {
	ctx = log.WithLogField(ctx, "req", uuid.New().String())
	ctx = log.WithLogField(ctx, "did", didID)
	a := &attempt{kind: kind, state: StateRequested}
	log.L(ctx).Infof("Verification %s requested", kind)
	return ctx, a
}

// run proves the conditions and submits the proof to the ledger. A request
// that fails before submission never reaches the ledger.
func (m *verificationManager) run(ctx context.Context, a *attempt, rec *messages.DIDRecord, conds *messages.Conditions) (*outcome, error) {
	a.transition(ctx, StateProofBuilding)
	in, err := proofs.BuildInput(ctx, rec, conds)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	if m.ledger == nil {
		return nil, a.reject(ctx, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerNotConfigured))
	}
	prover, err := m.getProver(ctx)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	start := time.Now()
	artifact, err := prover.Prove(ctx, in)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	metrics.ProofGenerated(time.Since(start))

	proofID, err := proofs.ProofID(artifact)
	if err != nil {
		return nil, a.reject(ctx, msgs.WrapError(ctx, msgs.ErrProofGeneration, err, msgs.MsgProveFailed))
	}
	proven, err := proofs.ProvenResults(ctx, artifact)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	a.transition(ctx, StateProofBuilt)
	log.L(ctx).Debugf("Proof %s built", proofID)

	a.transition(ctx, StateOnChainSubmitted)
	success, err := m.ledger.SubmitProof(ctx, artifact)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	return &outcome{artifact: artifact, proofID: proofID, proven: proven, success: success}, nil
}

func (m *verificationManager) VerifyAttribute(ctx context.Context, didID, attribute string, cond *messages.AttributeCondition) (bool, error) {
	ctx, a := m.newAttempt(ctx, kindAttribute, didID)
	rec, err := m.lookup(ctx, didID)
	if err != nil {
		return false, a.reject(ctx, err)
	}
	conds, err := proofs.AttributeConditions(ctx, attribute, cond)
	if err != nil {
		return false, a.reject(ctx, err)
	}
	out, err := m.run(ctx, a, rec, conds)
	if err != nil {
		return false, err
	}

	bit := out.proven[attribute]
	verified := out.success && bit != nil && *bit
	if verified {
		a.transition(ctx, StateConfirmed)
	} else {
		a.transition(ctx, StateRejected)
	}
	return verified, nil
}

func (m *verificationManager) VerifyMultiple(ctx context.Context, didID string, conds *messages.Conditions) (*messages.VerificationResult, error) {
	ctx, a := m.newAttempt(ctx, kindMultiple, didID)
	rec, err := m.lookup(ctx, didID)
	if err != nil {
		return nil, a.reject(ctx, err)
	}
	out, err := m.run(ctx, a, rec, conds)
	if err != nil {
		return nil, err
	}

	advisory := ComputeAdvisory(rec, conds)
	if diff := advisory.Mismatches(out.proven); len(diff) > 0 {
		log.L(ctx).Warnf("Advisory results differ from the proven results for %s", strings.Join(diff, ","))
	}
	result := &messages.VerificationResult{
		Success:    out.success,
		ProofID:    out.proofID,
		Attributes: advisory,
		Proof:      proofs.SnarkJS(out.artifact),
	}
	if !out.success {
		a.transition(ctx, StateRejected)
		return result, nil
	}
	a.transition(ctx, StateConfirmed)
	result.RecordCID = m.recordVerification(ctx, didID, result)
	return result, nil
}

// recordVerification appends the audit record. Failures are logged only,
// the verification itself has already been confirmed.
func (m *verificationManager) recordVerification(ctx context.Context, didID string, result *messages.VerificationResult) string {
	if m.archive == nil {
		log.L(ctx).Warnf("Verification %s not archived, no archive configured", result.ProofID)
		return ""
	}
	cid, err := m.archive.StoreVerificationRecord(ctx, &messages.VerificationRecord{
		DIDID:     didID,
		Timestamp: m.now().UnixMilli(),
		Result:    result,
	})
	if err != nil {
		log.L(ctx).Errorf("Failed to archive verification %s: %s", result.ProofID, err)
		return ""
	}
	log.L(ctx).Infof("Verification %s archived as %s", result.ProofID, cid)
	return cid
}

// Revoke is idempotent: a proof already in the registry returns true with
// no ledger transaction and no new audit entry.
func (m *verificationManager) Revoke(ctx context.Context, didID, proofID string) (bool, error) {
	ctx = log.WithLogField(ctx, "did", didID)
	if _, err := ledger.Bytes32(proofID); err != nil {
		return false, msgs.WrapError(ctx, msgs.ErrInvalidInput, err, msgs.MsgInvalidProofID, proofID)
	}
	proofID = strings.ToLower(proofID)
	if _, err := m.lookup(ctx, didID); err != nil {
		return false, err
	}

	if !m.beginRevoke(proofID) {
		return false, msgs.NewError(ctx, msgs.ErrConflict, msgs.MsgRevocationInFlight, proofID)
	}
	defer m.endRevoke(proofID)

	revoked, err := m.registry.IsRevoked(ctx, proofID)
	if err != nil {
		return false, err
	}
	if revoked {
		log.L(ctx).Infof("Proof %s already revoked", proofID)
		return true, nil
	}
	if m.ledger == nil {
		return false, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerNotConfigured)
	}
	if _, err := m.ledger.Revoke(ctx, didID, proofID); err != nil {
		return false, err
	}

	rec, added, err := m.registry.Record(ctx, didID, proofID, m.now().UnixMilli())
	if err != nil {
		log.L(ctx).Errorf("Proof %s revoked on chain but not recorded locally: %s", proofID, err)
		return true, nil
	}
	if added {
		metrics.Revoked()
		m.archiveRevocation(ctx, rec)
	}
	log.L(ctx).Infof("Proof %s revoked", proofID)
	return true, nil
}

func (m *verificationManager) beginRevoke(proofID string) bool {
	m.revokingMux.Lock()
	defer m.revokingMux.Unlock()
	if m.revoking[proofID] {
		return false
	}
	m.revoking[proofID] = true
	return true
}

func (m *verificationManager) endRevoke(proofID string) {
	m.revokingMux.Lock()
	defer m.revokingMux.Unlock()
	delete(m.revoking, proofID)
}

func (m *verificationManager) archiveRevocation(ctx context.Context, rec *messages.RevocationRecord) {
	if m.archive == nil {
		return
	}
	cid, err := m.archive.StoreRevocationRecord(ctx, rec)
	if err != nil {
		log.L(ctx).Errorf("Failed to archive revocation of %s: %s", rec.ProofID, err)
		return
	}
	log.L(ctx).Debugf("Revocation of %s archived as %s", rec.ProofID, cid)
}

func (m *verificationManager) CheckStatus(ctx context.Context, address string) (*messages.LedgerStatus, error) {
	if m.ledger == nil {
		return nil, msgs.NewError(ctx, msgs.ErrLedger, msgs.MsgLedgerNotConfigured)
	}
	verified, err := m.ledger.CheckStatus(ctx, address)
	if err != nil {
		return nil, err
	}
	return &messages.LedgerStatus{Address: address, Verified: verified}, nil
}

func (m *verificationManager) requireArchive(ctx context.Context) error {
	if m.archive == nil {
		return msgs.NewError(ctx, msgs.ErrInvalidInput, msgs.MsgArchiveNotConfigured)
	}
	return nil
}

func (m *verificationManager) Backup(ctx context.Context, didID string) (*messages.BackupResponse, error) {
	if err := m.requireArchive(ctx); err != nil {
		return nil, err
	}
	rec, err := m.lookup(ctx, didID)
	if err != nil {
		return nil, err
	}
	cid, err := m.archive.Store(ctx, rec)
	if err != nil {
		return nil, err
	}
	log.L(ctx).Infof("DID %s backed up as %s", didID, cid)
	return &messages.BackupResponse{DIDID: didID, CID: cid}, nil
}

func (m *verificationManager) Restore(ctx context.Context, cid string) (*messages.DIDView, error) {
	if err := m.requireArchive(ctx); err != nil {
		return nil, err
	}
	rec, err := m.archive.Retrieve(ctx, cid)
	if err != nil {
		return nil, err
	}
	if err := m.store.Import(ctx, rec); err != nil {
		return nil, err
	}
	log.L(ctx).Infof("DID %s restored from %s", rec.ID, cid)
	return rec.View(), nil
}

func (m *verificationManager) GetVerificationRecord(ctx context.Context, cid string) (*messages.VerificationRecord, error) {
	if err := m.requireArchive(ctx); err != nil {
		return nil, err
	}
	return m.archive.GetVerificationRecord(ctx, cid)
}
