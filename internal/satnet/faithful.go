package satnet

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/skylattice/orbitsim/internal/simerrors"
)

// faithfulFrame is the on-disk schema for one pre-generated topology frame,
// the tabular "offline TLE/ISL/GSL data" spec.md §4.1 describes. A faithful
// deployment's offline orbit/link generator (out of scope here, per §1) is
// expected to emit one JSON file per frame under data_dir, named
// "<unix-seconds>.json".
type faithfulFrame struct {
	TimeS      float64     `json:"time_s"`
	Satellites []satRecord `json:"satellites"`
	Links      []linkRecord `json:"links"`
}

type satRecord struct {
	OrbitIdx int     `json:"orbit_idx"`
	SlotIdx  int     `json:"slot_idx"`
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	AltKm    float64 `json:"alt_km"`
}

type linkRecord struct {
	AOrbitIdx int     `json:"a_orbit_idx"`
	ASlotIdx  int     `json:"a_slot_idx"`
	AGround   string  `json:"a_ground,omitempty"`
	BOrbitIdx int     `json:"b_orbit_idx"`
	BSlotIdx  int     `json:"b_slot_idx"`
	BGround   string  `json:"b_ground,omitempty"`
	CapacityBps float64 `json:"capacity_bps"`
	LatencySec  float64 `json:"latency_sec"`
	Seam        bool    `json:"seam"`
}

// FaithfulBackend consumes offline-generated topology frames from a
// directory, the faithful mode of spec.md §4.1. It holds the most recently
// loaded frame set in memory and refreshes it on a cron schedule, mirroring
// the teacher's internal/geoip/geoip.go Service (cron-scheduled reload
// behind a hot-swappable pointer with staleness detection).
type FaithfulBackend struct {
	mu       sync.RWMutex
	dataDir  string
	frames   []float64 // sorted available frame times
	byTime   map[float64]faithfulFrame
	epochS   float64

	cronSched *cron.Cron
	stopOnce  sync.Once
}

// NewFaithfulBackend loads the initial frame set from dataDir. schedule is
// a standard 5-field cron expression controlling re-scans for newly
// appended frames (e.g. a long research run against a data_dir regenerated
// by an external process).
func NewFaithfulBackend(dataDir, schedule string) (*FaithfulBackend, error) {
	b := &FaithfulBackend{dataDir: dataDir, byTime: make(map[float64]faithfulFrame)}
	if err := b.reload(); err != nil {
		return nil, err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := b.reload(); err != nil {
			log.Printf("[satnet] faithful backend refresh failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("faithful backend: invalid refresh schedule %q: %w", schedule, err)
	}
	b.cronSched = c
	c.Start()
	return b, nil
}

// Stop halts the background refresh scheduler.
func (b *FaithfulBackend) Stop() {
	b.stopOnce.Do(func() {
		if b.cronSched != nil {
			<-b.cronSched.Stop().Done()
		}
	})
}

func (b *FaithfulBackend) reload() error {
	entries, err := os.ReadDir(b.dataDir)
	if err != nil {
		return fmt.Errorf("%w: read data_dir %s: %v", simerrors.ErrOracleUnavailable, b.dataDir, err)
	}

	byTime := make(map[float64]faithfulFrame, len(entries))
	var times []float64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.dataDir, e.Name()))
		if err != nil {
			return fmt.Errorf("%w: read frame %s: %v", simerrors.ErrOracleUnavailable, e.Name(), err)
		}
		var frame faithfulFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return fmt.Errorf("%w: parse frame %s: %v", simerrors.ErrOracleUnavailable, e.Name(), err)
		}
		byTime[frame.TimeS] = frame
		times = append(times, frame.TimeS)
	}
	sort.Float64s(times)

	b.mu.Lock()
	b.frames = times
	b.byTime = byTime
	if len(times) > 0 {
		b.epochS = times[0]
	}
	b.mu.Unlock()
	return nil
}

func (b *FaithfulBackend) EpochS() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.epochS
}

// nearestFrame returns the latest frame at or before t, a zero-order hold
// between pre-generated samples.
func (b *FaithfulBackend) nearestFrame(t float64) (faithfulFrame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.frames) == 0 || t < b.frames[0] {
		return faithfulFrame{}, false
	}
	idx := sort.Search(len(b.frames), func(i int) bool { return b.frames[i] > t })
	chosen := b.frames[idx-1]
	return b.byTime[chosen], true
}

func (b *FaithfulBackend) SnapshotAt(t float64) (*NetworkSnapshot, error) {
	frame, ok := b.nearestFrame(t)
	if !ok {
		return &NetworkSnapshot{TimeS: t, WarmingUp: true}, nil
	}

	snap := &NetworkSnapshot{TimeS: t}
	grounds := make(map[string]Hash)
	for _, s := range frame.Satellites {
		snap.Satellites = append(snap.Satellites, Satellite{
			Hash: SatelliteHash(s.OrbitIdx, s.SlotIdx), OrbitIdx: s.OrbitIdx, SlotIdx: s.SlotIdx,
			LatDeg: s.LatDeg, LonDeg: s.LonDeg, AltKm: s.AltKm, SpareCapacity: 1.0,
		})
	}
	for _, l := range frame.Links {
		a := resolveEndpoint(l.AOrbitIdx, l.ASlotIdx, l.AGround, grounds, snap)
		b2 := resolveEndpoint(l.BOrbitIdx, l.BSlotIdx, l.BGround, grounds, snap)
		kind := LinkISL
		if l.AGround != "" || l.BGround != "" {
			kind = LinkGSL
		}
		snap.Links = append(snap.Links, Link{
			A: a, B: b2, Kind: kind, CapacityBps: l.CapacityBps,
			LatencySec: l.LatencySec, Active: true, Seam: l.Seam,
		})
	}
	snap.Build()
	return snap, nil
}

func resolveEndpoint(orbitIdx, slotIdx int, ground string, grounds map[string]Hash, snap *NetworkSnapshot) Hash {
	if ground != "" {
		h, ok := grounds[ground]
		if !ok {
			h = GroundHash(ground)
			grounds[ground] = h
			snap.Grounds = append(snap.Grounds, Ground{Hash: h, Name: ground})
		}
		return h
	}
	return SatelliteHash(orbitIdx, slotIdx)
}

func (b *FaithfulBackend) LinkCapacity(t float64) (map[[2]Hash]float64, error) {
	s, err := b.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkCapacity(), nil
}

func (b *FaithfulBackend) LinkUtilization(t float64) (map[[2]Hash]float64, error) {
	s, err := b.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkUtilization(), nil
}

func (b *FaithfulBackend) OrbitPhase(t float64) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.frames) < 2 {
		return 0, nil
	}
	period := b.frames[len(b.frames)-1] - b.frames[0]
	if period <= 0 {
		return 0, nil
	}
	phase := (t - b.frames[0]) / period
	phase -= float64(int(phase))
	if phase < 0 {
		phase += 1
	}
	return phase, nil
}

func (b *FaithfulBackend) TopologyChangeRate(t float64) (float64, error) {
	cur, err := b.SnapshotAt(t)
	if err != nil {
		return 0, err
	}
	prev, err := b.SnapshotAt(t - changeWindowS)
	if err != nil {
		return 0, err
	}
	return linkSetChangeRate(prev, cur), nil
}

func (b *FaithfulBackend) PredictFutureCapacity(t, h float64) (float64, error) {
	cur, err := b.SnapshotAt(t)
	if err != nil {
		return 0, err
	}
	future, err := b.SnapshotAt(t + h)
	if err != nil {
		return 0, err
	}
	var curCap, curLoad, futureCap float64
	for _, l := range cur.Links {
		curCap += l.CapacityBps
		curLoad += l.LoadBps
	}
	for _, l := range future.Links {
		futureCap += l.CapacityBps
	}
	utilRatio := 0.0
	if curCap > 0 {
		utilRatio = curLoad / curCap
	}
	return futureCap * (1 - utilRatio), nil
}

func (b *FaithfulBackend) RoutingStabilityMetrics(t float64) (RoutingStabilityMetrics, error) {
	rate, err := b.TopologyChangeRate(t)
	if err != nil {
		return RoutingStabilityMetrics{}, err
	}
	return RoutingStabilityMetrics{
		HandoverPredCount: int(rate * 10),
		EarliestHandoverS: 30,
		SeamRisk:          rate > 0.3,
		ContactMarginS:    30,
	}, nil
}
