package engine

import (
	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/metricsagg"
)

// RunSummary is the engine's final report: the per-step metrics series plus
// the admission controller's cumulative totals, whose invariant (total
// decided equals accepted+rejected+degraded+delayed+partial) is Stats'
// alone to maintain.
type RunSummary struct {
	metricsagg.RunSummary
	AdmissionTotals admission.StatsSnapshot
}
