// Command orbitsim drives one simulation run from a scenario file to a
// RunSummary, the CLI surface over the Simulation Engine (spec.md §6).
// Grounded on cmd/resin/main.go's phased component wiring and fatalf/exit
// conventions, adapted to the shorter lifecycle of a single deterministic
// run rather than a long-lived proxy server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skylattice/orbitsim/internal/buildinfo"
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/engine"
	"github.com/skylattice/orbitsim/internal/runlog"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// Exit codes per spec.md §6.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitScenarioIOErr = 3
	exitBackendErr    = 4
	exitCancelled     = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: orbitsim <scenario-file>\n")
		return exitConfigError
	}
	log.Printf("[engine] orbitsim %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// Phase 1: load and validate the scenario.
	cfg, err := config.Load(args[0])
	if err != nil {
		if simerrors.Classify(err) == simerrors.KindConfig {
			fmt.Fprintf(os.Stderr, "fatal: invalid scenario: %v\n", err)
			return exitConfigError
		}
		fmt.Fprintf(os.Stderr, "fatal: reading scenario %s: %v\n", args[0], err)
		return exitScenarioIOErr
	}
	log.Printf("[engine] scenario loaded: %d ground stations, master_seed=%d", len(cfg.GroundStations), cfg.MasterSeed)

	// Phase 2: optional run-artifact writer. The run_log.path requirement
	// is checked before the engine is built, so a missing path fails fast;
	// the writer itself is opened after the engine is built, before the run.
	var writer *runlog.Writer
	if cfg.Simulation.OutputFormat == config.OutputSQLite {
		if cfg.RunLog.Path == "" {
			fmt.Fprintf(os.Stderr, "fatal: simulation.output_format: sqlite requires run_log.path\n")
			return exitConfigError
		}
		log.Printf("[engine] run artifact: %s", cfg.RunLog.Path)
	}

	// Phase 3: wire the Topology Oracle, geo Resolver, Positioning Engine,
	// and Admission Controller. selector is nil: this CLI drives a fixed
	// admission policy end to end, never an externally-stepped RL episode
	// (that is internal/rlenv's job).
	var pendingAdmissions []engine.AdmissionEvent
	hooks := engine.Hooks{
		OnAdmission: func(ev engine.AdmissionEvent) {
			pendingAdmissions = append(pendingAdmissions, ev)
		},
		OnStep: func(ev engine.StepEvent) {
			if writer != nil {
				for _, a := range pendingAdmissions {
					if err := writer.WriteAdmission(ev.Metrics.StepIndex, a.Request, a.Decision); err != nil {
						log.Printf("[runlog] write admission for request %s: %v", a.Request.ID, err)
					}
				}
				if err := writer.WriteStep(ev.Metrics); err != nil {
					log.Printf("[runlog] write step %d: %v", ev.Metrics.StepIndex, err)
				}
			}
			pendingAdmissions = pendingAdmissions[:0]
			if cfg.Simulation.DetailedLogging {
				log.Printf("[engine] step %d t=%.1fs accepted=%d rejected=%d qoe=%.3f",
					ev.Metrics.StepIndex, ev.Metrics.TimeS, ev.Metrics.Accepted, ev.Metrics.Rejected, ev.Metrics.QoEMean)
			}
		},
	}

	built, err := engine.BuildFromScenario(*cfg, nil, hooks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: backend unavailable: %v\n", err)
		return exitBackendErr
	}
	log.Println("[engine] topology oracle, positioning engine, admission controller wired")

	if cfg.Simulation.OutputFormat == config.OutputSQLite {
		w, err := runlog.Open(cfg.RunLog.Path, built.Engine.RunID(), cfg.MasterSeed, time.Now().UnixNano())
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: opening run artifact: %v\n", err)
			return exitScenarioIOErr
		}
		writer = w
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("[runlog] close: %v", err)
			}
		}()
	}

	// Phase 4: run to completion, honoring SIGINT/SIGTERM as a clean
	// cancellation (spec.md §4.6: "the current step completes, then the
	// loop returns a Cancelled summary").
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, runErr := built.Engine.Run(ctx)
	stop()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "fatal: run aborted: %v\n", runErr)
		if writer != nil {
			if err := writer.Finalize(summary, time.Now().UnixNano()); err != nil {
				log.Printf("[runlog] finalize: %v", err)
			}
		}
		return exitBackendErr
	}
	log.Printf("[engine] run complete: accepted=%d rejected=%d degraded=%d delayed=%d partial=%d cancelled=%v",
		summary.AdmissionTotals.Accepted, summary.AdmissionTotals.Rejected, summary.AdmissionTotals.Degraded,
		summary.AdmissionTotals.Delayed, summary.AdmissionTotals.Partial, summary.Cancelled)

	// Phase 5: finalize the run artifact and emit the summary.
	if writer != nil {
		if err := writer.Finalize(summary, time.Now().UnixNano()); err != nil {
			log.Printf("[runlog] finalize: %v", err)
		}
	}

	if cfg.Simulation.OutputFormat != config.OutputNone {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Printf("[engine] encode run summary: %v", err)
		}
	}

	if summary.Cancelled {
		return exitCancelled
	}
	return exitOK
}
