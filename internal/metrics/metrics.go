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

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zkid"

var (
	registry = prometheus.NewRegistry()

	verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verification attempts by terminal state",
	}, []string{"kind", "state"})

	proofDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "proof_duration_seconds",
		Help:      "Time spent generating proofs",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	ledgerTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_tx_total",
		Help:      "Ledger transactions by method and outcome",
	}, []string{"method", "outcome"})

	revocations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revocations_total",
		Help:      "Proofs newly recorded as revoked",
	})
)

func init() {
	registry.MustRegister(verifications, proofDuration, ledgerTransactions, revocations)
}

func Registry() *prometheus.Registry {
	return registry
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// VerificationFinished counts an attempt that reached a terminal state,
// Confirmed or Rejected, for the "attribute" or "multiple" request kind.
func VerificationFinished(kind, state string) {
	verifications.WithLabelValues(kind, state).Inc()
}

func ProofGenerated(elapsed time.Duration) {
	proofDuration.Observe(elapsed.Seconds())
}

func LedgerTransaction(method, outcome string) {
	ledgerTransactions.WithLabelValues(method, outcome).Inc()
}

func Revoked() {
	revocations.Inc()
}
