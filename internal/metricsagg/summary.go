package metricsagg

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// RunSummary is the immutable record produced once a run completes or is
// cancelled: the full per-step series plus a content hash over that series,
// so two runs of the same master seed and scenario can be compared for
// byte-identical reproduction without diffing every field by hand.
type RunSummary struct {
	RunID      string
	MasterSeed uint64
	Cancelled  bool
	Steps      []StepMetrics
	SeriesCRC  uint64
}

// NewRunSummary folds a completed per-step series into a RunSummary,
// computing the determinism CRC over a canonical little-endian encoding of
// every step's numeric fields in StepMetrics field order.
func NewRunSummary(runID string, masterSeed uint64, cancelled bool, steps []StepMetrics) RunSummary {
	return RunSummary{
		RunID:      runID,
		MasterSeed: masterSeed,
		Cancelled:  cancelled,
		Steps:      steps,
		SeriesCRC:  seriesCRC(steps),
	}
}

func seriesCRC(steps []StepMetrics) uint64 {
	buf := make([]byte, 0, len(steps)*168)
	var scratch [8]byte
	putF := func(v float64) {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		buf = append(buf, scratch[:]...)
	}
	putI := func(v int64) {
		binary.LittleEndian.PutUint64(scratch[:], uint64(v))
		buf = append(buf, scratch[:]...)
	}
	for _, s := range steps {
		putI(int64(s.StepIndex))
		putF(s.TimeS)
		putF(s.ThroughputBps)
		putF(s.LatencyMeanS)
		putF(s.LatencyP95S)
		putF(s.LatencyP99S)
		putF(s.PacketLossRate)
		putF(s.JitterS)
		putF(s.JainFairness)
		putF(s.QoEMean)
		putI(int64(s.Accepted))
		putI(int64(s.Rejected))
		putI(int64(s.DegradedAccept))
		putI(int64(s.DelayedAccept))
		putI(int64(s.PartialAccept))
		putF(s.AposMean)
		putF(s.CRLBMeanM)
		putF(s.CRLBP95M)
		putF(s.GDOPMean)
		putF(s.GDOPP95)
		putF(s.HandoverRate)
		putF(s.RoutingChangeRate)
		putF(s.AvgRouteLifetimeS)
		putF(s.SeamRatio)
	}
	return xxh3.Hash(buf)
}
