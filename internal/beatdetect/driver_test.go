package beatdetect

import (
	"math"
	"testing"
)

// generateClickTrain synthesizes durationSec seconds of audio at
// sampleRate containing a short decaying tone burst ("click") at
// every beat of the given bpm. If skipOdd is true, every other click
// is omitted (S4: half the clicks missing).
func generateClickTrain(sampleRate int, bpm float64, durationSec float64, skipOdd bool) []float32 {
	n := int(durationSec * float64(sampleRate))
	out := make([]float32, n)

	const clickFreq = 2000.0
	clickLen := int(0.05 * float64(sampleRate)) // 50ms decaying burst

	period := 60.0 / bpm
	click := 0
	for t := 0.0; t < durationSec; t += period {
		if skipOdd && click%2 == 1 {
			click++
			continue
		}
		click++
		start := int(t * float64(sampleRate))
		for i := 0; i < clickLen && start+i < n; i++ {
			env := math.Exp(-6 * float64(i) / float64(clickLen))
			out[start+i] += float32(env * math.Sin(2*math.Pi*clickFreq*float64(i)/float64(sampleRate)))
		}
	}
	return out
}

// generateSegmentedClickTrain concatenates click trains at different
// tempos back to back (S5: a tempo switch partway through).
func generateSegmentedClickTrain(sampleRate int, bpms []float64, durations []float64) []float32 {
	var out []float32
	for i, bpm := range bpms {
		out = append(out, generateClickTrain(sampleRate, bpm, durations[i], false)...)
	}
	return out
}

// collectBPM runs samples through a Detector in blockSize chunks
// (whole slice if blockSize <= 0), returning every emitted BeatUpdate.
func collectBPM(t *testing.T, cfg Config, samples []float32, blockSize int) []BeatUpdate {
	t.Helper()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var updates []BeatUpdate
	d.SetBeatHandler(func(ts float64, bpm float32) {
		updates = append(updates, BeatUpdate{Timestamp: ts, BPM: bpm})
	})

	if blockSize <= 0 {
		blockSize = len(samples)
	}
	ts := 0.0
	for i := 0; i < len(samples); i += blockSize {
		end := i + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		d.ProcessBlock(samples[i:end], ts+float64(i)/float64(cfg.SampleRate))
	}
	return updates
}

func scenarioConfig(minTempo, maxTempo float64) Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 22050
	cfg.ChunkSize = 2048
	cfg.HopSize = 90
	cfg.FrequencyBands = 12
	cfg.MinTempo = minTempo
	cfg.MaxTempo = maxTempo
	return cfg
}

// TestDetector_Silence_NoBPMEmission covers §8 boundary 9: silence
// yields zero peaks and no BPM emissions.
func TestDetector_Silence_NoBPMEmission(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	samples := make([]float32, cfg.SampleRate*5)
	updates := collectBPM(t, cfg, samples, 4096)
	if len(updates) != 0 {
		t.Fatalf("expected no BPM emissions from silence, got %v", updates)
	}
}

// TestDetector_SingleImpulse_NoBPMEmission covers §8 boundary 10: a
// single click needs a second peak and a full history window before
// any BPM can be emitted.
func TestDetector_SingleImpulse_NoBPMEmission(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	samples := make([]float32, cfg.SampleRate*3)
	clickLen := int(0.05 * float64(cfg.SampleRate))
	for i := 0; i < clickLen; i++ {
		env := math.Exp(-6 * float64(i) / float64(clickLen))
		samples[i] = float32(env * math.Sin(2*math.Pi*2000*float64(i)/float64(cfg.SampleRate)))
	}
	updates := collectBPM(t, cfg, samples, 4096)
	if len(updates) != 0 {
		t.Fatalf("expected no BPM emission from a single impulse, got %v", updates)
	}
}

// TestDetector_SteadyClickTrains covers S1-S3: steady click trains converge to the
// target tempo within ±1 BPM (§8 scenario table).
func TestDetector_SteadyClickTrains(t *testing.T) {
	cases := []struct {
		name string
		bpm  float64
		secs float64
	}{
		{"S1_88bpm", 88, 10},
		{"S2_126bpm", 126, 15},
		{"S3_60bpm", 60, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := scenarioConfig(40, 240)
			samples := generateClickTrain(cfg.SampleRate, c.bpm, c.secs, false)
			updates := collectBPM(t, cfg, samples, 4096)
			if len(updates) == 0 {
				t.Fatalf("no BPM emitted for %v BPM click train", c.bpm)
			}
			last := updates[len(updates)-1]
			if math.Abs(float64(last.BPM)-c.bpm) > 1.0 {
				t.Errorf("converged BPM = %v, want %v ± 1", last.BPM, c.bpm)
			}
		})
	}
}

// TestDetector_S4_MissingClicks covers half the clicks missing at 90
// BPM; interval folding should recover 90 within ±3.
func TestDetector_S4_MissingClicks(t *testing.T) {
	cfg := scenarioConfig(60, 120)
	samples := generateClickTrain(cfg.SampleRate, 90, 12, true)
	updates := collectBPM(t, cfg, samples, 4096)
	if len(updates) == 0 {
		t.Fatal("no BPM emitted for a click train with half the clicks missing")
	}
	last := updates[len(updates)-1]
	if math.Abs(float64(last.BPM)-90) > 3.0 {
		t.Errorf("converged BPM = %v, want 90 ± 3", last.BPM)
	}
}

// TestDetector_S5_TempoSwitch covers a tempo switch at t=10s (100bpm
// -> 120bpm) over a 20s clip; the estimate should converge to 120
// within ±3 by the end.
func TestDetector_S5_TempoSwitch(t *testing.T) {
	cfg := scenarioConfig(80, 160)
	samples := generateSegmentedClickTrain(cfg.SampleRate, []float64{100, 120}, []float64{10, 10})
	updates := collectBPM(t, cfg, samples, 4096)
	if len(updates) == 0 {
		t.Fatal("no BPM emitted across a tempo switch")
	}
	last := updates[len(updates)-1]
	if math.Abs(float64(last.BPM)-120) > 3.0 {
		t.Errorf("final BPM after switch = %v, want 120 ± 3", last.BPM)
	}
}

// TestDetector_S6_180BPM covers a fast click train at 180 BPM.
func TestDetector_S6_180BPM(t *testing.T) {
	cfg := scenarioConfig(100, 200)
	samples := generateClickTrain(cfg.SampleRate, 180, 10, false)
	updates := collectBPM(t, cfg, samples, 4096)
	if len(updates) == 0 {
		t.Fatal("no BPM emitted for 180 BPM click train")
	}
	last := updates[len(updates)-1]
	if math.Abs(float64(last.BPM)-180) > 3.0 {
		t.Errorf("converged BPM = %v, want 180 ± 3", last.BPM)
	}
}

// TestDetector_ReChunkingEquivalence covers §8 round-trip property 7:
// feeding the same audio as one block or as many tiny blocks yields an
// identical BPM sequence.
func TestDetector_ReChunkingEquivalence(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	samples := generateClickTrain(cfg.SampleRate, 100, 3, false)

	whole := collectBPM(t, cfg, samples, 0)
	tiny := collectBPM(t, cfg, samples, 7)

	if len(whole) != len(tiny) {
		t.Fatalf("BPM sequence length differs under re-chunking: %d vs %d", len(whole), len(tiny))
	}
	for i := range whole {
		if whole[i] != tiny[i] {
			t.Errorf("update %d differs under re-chunking: %+v vs %+v", i, whole[i], tiny[i])
		}
	}
}

// TestDetector_TimestampShiftInvariance covers §8 property 8: shifting
// every input timestamp by a constant shifts every output timestamp by
// the same constant and leaves BPM values unchanged.
func TestDetector_TimestampShiftInvariance(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	samples := generateClickTrain(cfg.SampleRate, 100, 3, false)
	const shift = 1000.0

	d1, _ := New(cfg)
	var base []BeatUpdate
	d1.SetBeatHandler(func(ts float64, bpm float32) {
		base = append(base, BeatUpdate{Timestamp: ts, BPM: bpm})
	})
	d1.ProcessBlock(samples, 0)

	d2, _ := New(cfg)
	var shifted []BeatUpdate
	d2.SetBeatHandler(func(ts float64, bpm float32) {
		shifted = append(shifted, BeatUpdate{Timestamp: ts, BPM: bpm})
	})
	d2.ProcessBlock(samples, shift)

	if len(base) != len(shifted) {
		t.Fatalf("emission count differs under timestamp shift: %d vs %d", len(base), len(shifted))
	}
	for i := range base {
		if base[i].BPM != shifted[i].BPM {
			t.Errorf("update %d BPM differs under timestamp shift: %v vs %v", i, base[i].BPM, shifted[i].BPM)
		}
		if math.Abs((shifted[i].Timestamp-base[i].Timestamp)-shift) > 1e-6 {
			t.Errorf("update %d timestamp shift = %v, want %v", i, shifted[i].Timestamp-base[i].Timestamp, shift)
		}
	}
}

// TestDetector_ResetMatchesFreshDetector covers §8 invariant 6: after
// Reset, the first subsequent emission equals that of a fresh
// detector fed the same blocks.
func TestDetector_ResetMatchesFreshDetector(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	samples := generateClickTrain(cfg.SampleRate, 100, 10, false)

	fresh := collectBPM(t, cfg, samples, 4096)
	if len(fresh) == 0 {
		t.Fatal("expected at least one emission from the fresh detector")
	}

	d, _ := New(cfg)
	var warm []BeatUpdate
	d.SetBeatHandler(func(ts float64, bpm float32) {
		warm = append(warm, BeatUpdate{Timestamp: ts, BPM: bpm})
	})
	// Run once to dirty all state, then reset.
	for i := 0; i < len(samples); i += 4096 {
		end := i + 4096
		if end > len(samples) {
			end = len(samples)
		}
		d.ProcessBlock(samples[i:end], float64(i)/float64(cfg.SampleRate))
	}
	d.Reset()
	warm = nil
	for i := 0; i < len(samples); i += 4096 {
		end := i + 4096
		if end > len(samples) {
			end = len(samples)
		}
		d.ProcessBlock(samples[i:end], float64(i)/float64(cfg.SampleRate))
	}

	if len(warm) == 0 {
		t.Fatal("expected at least one emission after reset")
	}
	if warm[0] != fresh[0] {
		t.Errorf("first emission after reset = %+v, want %+v (matching a fresh detector)", warm[0], fresh[0])
	}
}

// TestDetector_NoAllocationAfterWarmup covers §8 invariant 1: once the
// queue and history buffers have stabilized, ProcessBlock on further
// silent blocks allocates nothing.
func TestDetector_NoAllocationAfterWarmup(t *testing.T) {
	cfg := scenarioConfig(40, 240)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	block := make([]float32, cfg.HopSize)
	ts := 0.0

	// Warm up: enough silent blocks to pass the chunk-size buffering
	// threshold and stabilize every pre-sized scratch buffer.
	for i := 0; i < 200; i++ {
		d.ProcessBlock(block, ts)
		ts += float64(cfg.HopSize) / float64(cfg.SampleRate)
	}

	allocs := testing.AllocsPerRun(50, func() {
		d.ProcessBlock(block, ts)
		ts += float64(cfg.HopSize) / float64(cfg.SampleRate)
	})
	if allocs > 0 {
		t.Errorf("ProcessBlock allocated %v times per run after warm-up, want 0", allocs)
	}
}
