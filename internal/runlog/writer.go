package runlog

import (
	"database/sql"
	"fmt"

	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/engine"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/metricsagg"
)

// Writer appends one run's steps and admission decisions to a sqlite file,
// applying migrations on Open. A Writer is single-writer, single-run: one
// file per invocation of cmd/orbitsim, never reopened for a later run.
type Writer struct {
	db    *sql.DB
	runID string
}

// Open creates (or migrates) the sqlite file at path and registers runID's
// run_meta row with startedAtNs and masterSeed, the same "insert parent row
// before children" ordering internal/state's platform/node tables rely on.
func Open(path string, runID string, masterSeed uint64, startedAtNs int64) (*Writer, error) {
	db, err := openMigrated(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(
		`INSERT INTO run_meta (run_id, master_seed, started_at_ns) VALUES (?, ?, ?)`,
		runID, int64(masterSeed), startedAtNs,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog insert run_meta: %w", err)
	}
	return &Writer{db: db, runID: runID}, nil
}

// Close closes the underlying database handle.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

// WriteStep appends one step's folded metrics.
func (w *Writer) WriteStep(m metricsagg.StepMetrics) error {
	_, err := w.db.Exec(`INSERT INTO steps (
		run_id, step_index, time_s,
		throughput_bps, latency_mean_s, latency_p95_s, latency_p99_s,
		packet_loss_rate, jitter_s, jain_fairness, qoe_mean,
		accepted, rejected, degraded_accept, delayed_accept, partial_accept,
		apos_mean, crlb_mean_m, crlb_p95_m, gdop_mean, gdop_p95,
		handover_rate, routing_change_rate, avg_route_lifetime_s, seam_ratio
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.runID, m.StepIndex, m.TimeS,
		m.ThroughputBps, m.LatencyMeanS, m.LatencyP95S, m.LatencyP99S,
		m.PacketLossRate, m.JitterS, m.JainFairness, m.QoEMean,
		m.Accepted, m.Rejected, m.DegradedAccept, m.DelayedAccept, m.PartialAccept,
		m.AposMean, m.CRLBMeanM, m.CRLBP95M, m.GDOPMean, m.GDOPP95,
		m.HandoverRate, m.RoutingChangeRate, m.AvgRouteLifetimeS, m.SeamRatio,
	)
	if err != nil {
		return fmt.Errorf("runlog insert step %d: %w", m.StepIndex, err)
	}
	return nil
}

// WriteAdmission appends one admission decision, scoped to the step it was
// made in.
func (w *Writer) WriteAdmission(stepIndex int, req flowstate.FlowRequest, decision admission.Decision) error {
	_, err := w.db.Exec(`INSERT INTO admission_events (
		run_id, step_index, request_id, class, decision_kind, confidence, reason, retry_at_s
	) VALUES (?,?,?,?,?,?,?,?)`,
		w.runID, stepIndex, req.ID, string(req.Class), string(decision.Kind),
		decision.Confidence, decision.Reason, decision.RetryAtS,
	)
	if err != nil {
		return fmt.Errorf("runlog insert admission event for request %s: %w", req.ID, err)
	}
	return nil
}

// Finalize writes the run's terminal fields onto its run_meta row: the
// admission totals, cancellation flag, determinism CRC, and end timestamp.
func (w *Writer) Finalize(summary engine.RunSummary, finishedAtNs int64) error {
	cancelled := 0
	if summary.Cancelled {
		cancelled = 1
	}
	_, err := w.db.Exec(`UPDATE run_meta SET
		finished_at_ns = ?, cancelled = ?, series_crc = ?,
		accepted = ?, rejected = ?, degraded_accept = ?, delayed_accept = ?, partial_accept = ?
		WHERE run_id = ?`,
		finishedAtNs, cancelled, int64(summary.SeriesCRC),
		summary.AdmissionTotals.Accepted, summary.AdmissionTotals.Rejected,
		summary.AdmissionTotals.Degraded, summary.AdmissionTotals.Delayed, summary.AdmissionTotals.Partial,
		w.runID,
	)
	if err != nil {
		return fmt.Errorf("runlog finalize run_meta: %w", err)
	}
	return nil
}
