package main

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalScenarioYAML = `
constellation:
  altitude_km: 550
  inclination_deg: 53
  num_orbits: 4
  sats_per_orbit: 6
  isl_rate_mbps: 10000
  gs_antennas: 4
simulation:
  end_time_s: 3
  step_ms: 1000
  output_format: none
ground_stations:
  - name: beijing
    lat: 39.9
    lon: 116.4
  - name: new_york
    lat: 40.7
    lon: -74.0
traffic:
  arrival: poisson_rate
  poisson_rate: 2.5
  class_mix:
    EF: 0.2
    AF: 0.3
    BE: 0.5
admission:
  policy: threshold
dsroq:
  alpha: 0.5
  mcts_iters: 50
  queue_backlog_limit: 5000000
positioning:
  elevation_mask_deg: 10
  crlb_threshold: 50
  min_visible_beams: 3
  min_coop_sats: 2
backend:
  hypatia_mode: simplified
  ns3_mode: simplified
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunRequiresExactlyOneArgument(t *testing.T) {
	if code := run(nil); code != exitConfigError {
		t.Errorf("run(nil) = %d, want %d", code, exitConfigError)
	}
	if code := run([]string{"a", "b"}); code != exitConfigError {
		t.Errorf("run(two args) = %d, want %d", code, exitConfigError)
	}
}

func TestRunReturnsScenarioIOErrorForMissingFile(t *testing.T) {
	if code := run([]string{filepath.Join(t.TempDir(), "missing.yaml")}); code != exitScenarioIOErr {
		t.Errorf("run(missing file) = %d, want %d", code, exitScenarioIOErr)
	}
}

func TestRunReturnsConfigErrorForInvalidScenario(t *testing.T) {
	path := writeScenario(t, "constellation:\n  num_orbits: -1\n")
	if code := run([]string{path}); code != exitConfigError {
		t.Errorf("run(invalid scenario) = %d, want %d", code, exitConfigError)
	}
}

func TestRunReturnsConfigErrorWhenSQLiteOutputHasNoPath(t *testing.T) {
	body := `
constellation:
  altitude_km: 550
  inclination_deg: 53
  num_orbits: 4
  sats_per_orbit: 6
  isl_rate_mbps: 10000
  gs_antennas: 4
simulation:
  end_time_s: 3
  step_ms: 1000
  output_format: sqlite
ground_stations:
  - name: beijing
    lat: 39.9
    lon: 116.4
  - name: new_york
    lat: 40.7
    lon: -74.0
traffic:
  arrival: poisson_rate
  poisson_rate: 2.5
  class_mix:
    EF: 0.2
    AF: 0.3
    BE: 0.5
admission:
  policy: threshold
dsroq:
  alpha: 0.5
  mcts_iters: 50
  queue_backlog_limit: 5000000
positioning:
  elevation_mask_deg: 10
  crlb_threshold: 50
  min_visible_beams: 3
  min_coop_sats: 2
backend:
  hypatia_mode: simplified
  ns3_mode: simplified
`
	p := writeScenario(t, body)
	if code := run([]string{p}); code != exitConfigError {
		t.Errorf("run(sqlite output without run_log.path) = %d, want %d", code, exitConfigError)
	}
}

func TestRunCompletesMinimalScenario(t *testing.T) {
	path := writeScenario(t, minimalScenarioYAML)
	if code := run([]string{path}); code != exitOK {
		t.Errorf("run(minimal scenario) = %d, want %d", code, exitOK)
	}
}

func TestRunWritesSQLiteArtifactWhenConfigured(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	body := `
constellation:
  altitude_km: 550
  inclination_deg: 53
  num_orbits: 4
  sats_per_orbit: 6
  isl_rate_mbps: 10000
  gs_antennas: 4
simulation:
  end_time_s: 3
  step_ms: 1000
  output_format: sqlite
ground_stations:
  - name: beijing
    lat: 39.9
    lon: 116.4
  - name: new_york
    lat: 40.7
    lon: -74.0
traffic:
  arrival: poisson_rate
  poisson_rate: 2.5
  class_mix:
    EF: 0.2
    AF: 0.3
    BE: 0.5
admission:
  policy: threshold
dsroq:
  alpha: 0.5
  mcts_iters: 50
  queue_backlog_limit: 5000000
positioning:
  elevation_mask_deg: 10
  crlb_threshold: 50
  min_visible_beams: 3
  min_coop_sats: 2
backend:
  hypatia_mode: simplified
  ns3_mode: simplified
run_log:
  path: ` + dbPath + `
`
	path := writeScenario(t, body)
	if code := run([]string{path}); code != exitOK {
		t.Fatalf("run(sqlite scenario) = %d, want %d", code, exitOK)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected run artifact at %s: %v", dbPath, err)
	}
}
