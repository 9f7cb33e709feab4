package beatdetect

import (
	"errors"
	"testing"
)

// TestConfig_Validate_InvalidFields verifies that each out-of-range
// Config field is rejected with an InvalidConfigError naming that
// field, and that every other field stays valid so each case isolates
// exactly one branch of Validate.
func TestConfig_Validate_InvalidFields(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "zero SampleRate",
			mutate:    func(c *Config) { c.SampleRate = 0 },
			wantField: "SampleRate",
		},
		{
			name:      "negative SampleRate",
			mutate:    func(c *Config) { c.SampleRate = -22050 },
			wantField: "SampleRate",
		},
		{
			name:      "zero ChunkSize",
			mutate:    func(c *Config) { c.ChunkSize = 0 },
			wantField: "ChunkSize",
		},
		{
			name:      "non-power-of-two ChunkSize",
			mutate:    func(c *Config) { c.ChunkSize = 2000 },
			wantField: "ChunkSize",
		},
		{
			name:      "zero HopSize",
			mutate:    func(c *Config) { c.HopSize = 0 },
			wantField: "HopSize",
		},
		{
			name:      "HopSize larger than ChunkSize",
			mutate:    func(c *Config) { c.HopSize = c.ChunkSize + 1 },
			wantField: "HopSize",
		},
		{
			name:      "unsupported FrequencyBands",
			mutate:    func(c *Config) { c.FrequencyBands = 8 },
			wantField: "FrequencyBands",
		},
		{
			name:      "zero MinTempo",
			mutate:    func(c *Config) { c.MinTempo = 0 },
			wantField: "MinTempo/MaxTempo",
		},
		{
			name:      "zero MaxTempo",
			mutate:    func(c *Config) { c.MaxTempo = 0 },
			wantField: "MinTempo/MaxTempo",
		},
		{
			name:      "MinTempo equal to MaxTempo",
			mutate:    func(c *Config) { c.MinTempo, c.MaxTempo = 120, 120 },
			wantField: "MinTempo/MaxTempo",
		},
		{
			name:      "MinTempo greater than MaxTempo",
			mutate:    func(c *Config) { c.MinTempo, c.MaxTempo = 200, 60 },
			wantField: "MinTempo/MaxTempo",
		},
		{
			name:      "zero BucketCount",
			mutate:    func(c *Config) { c.BucketCount = 0 },
			wantField: "BucketCount",
		},
		{
			name:      "negative BucketCount",
			mutate:    func(c *Config) { c.BucketCount = -1 },
			wantField: "BucketCount",
		},
		{
			name:      "zero PeakHistoryLength",
			mutate:    func(c *Config) { c.PeakHistoryLength = 0 },
			wantField: "PeakHistoryLength",
		},
		{
			name:      "zero RecentHistoryDuration",
			mutate:    func(c *Config) { c.RecentHistoryDuration = 0 },
			wantField: "RecentHistoryDuration",
		},
		{
			name:      "negative CoalesceInterval",
			mutate:    func(c *Config) { c.CoalesceInterval = -0.1 },
			wantField: "CoalesceInterval",
		},
		{
			name:      "negative RecentMaxThresholdRatio",
			mutate:    func(c *Config) { c.RecentMaxThresholdRatio = -0.1 },
			wantField: "RecentMaxThresholdRatio",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want InvalidConfigError for field %q", tc.wantField)
			}

			var invalid *InvalidConfigError
			if !errors.As(err, &invalid) {
				t.Fatalf("Validate() returned %T, want *InvalidConfigError", err)
			}
			if invalid.Field != tc.wantField {
				t.Errorf("InvalidConfigError.Field = %q, want %q", invalid.Field, tc.wantField)
			}
		})
	}
}

// TestConfig_Validate_Defaults verifies that DefaultConfig (optionally
// with SampleRate/tempo overridden, the only fields callers are
// expected to change) passes validation.
func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on DefaultConfig() = %v, want nil", err)
	}
}

// TestConfig_Validate_BoundaryHopSize verifies that HopSize equal to
// ChunkSize, the documented upper bound, is accepted rather than
// rejected by an off-by-one in the HopSize > ChunkSize check.
func TestConfig_Validate_BoundaryHopSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HopSize = cfg.ChunkSize
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with HopSize == ChunkSize = %v, want nil", err)
	}
}

// TestInvalidConfigError_Error verifies the error message embeds both
// the offending field name and the reason, since callers and logs
// depend on that format to pinpoint the bad field.
func TestInvalidConfigError_Error(t *testing.T) {
	err := &InvalidConfigError{Field: "ChunkSize", Reason: "must be a power of two"}
	got := err.Error()
	want := `beatdetect: invalid config field "ChunkSize": must be a power of two`
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
