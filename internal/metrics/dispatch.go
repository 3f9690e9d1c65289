// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchOutcomes tracks where an inbound packet's community lookup
	// landed: a loaded community, an auto-loaded one, an unknown cid that
	// was queued, or one dropped by the unknown-cid throttle.
	DispatchOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Total number of inbound packets by dispatch outcome",
		},
		[]string{"outcome"}, // loaded, auto_loaded, queued, throttled
	)

	// DispatchDelayedQueueSize tracks how many packets are held awaiting a
	// community that has not finished (auto-)loading yet.
	DispatchDelayedQueueSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delayed_queue_size",
			Help:      "Number of packets queued awaiting community load",
		},
	)

	// CandidateTableSize tracks the number of live candidates the random
	// walk driver can currently pick from.
	CandidateTableSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidate_table_size",
			Help:      "Number of candidates currently tracked for the random walk",
		},
	)
)
