package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vnykmshr/gopermit/internal/testutil"
	gperrors "github.com/vnykmshr/gopermit/pkg/common/errors"
)

const fullDocument = `
policy:
  fill_rate: 8.0
  normal_capacity: 100
  burst_capacity: 120
  low_threshold: 30
  protection_threshold: 75
  max_protected_request: 2
  refill_interval: 500ms
  stressed_refill_interval: 200ms

windows:
  - name: business-hours
    cron: "0 9 * * 1-5"
    policy:
      fill_rate: 16.0
  - name: overnight
    cron: "0 19 * * 1-5"
    policy:
      fill_rate: 4.0
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(fullDocument))
	testutil.AssertNoError(t, err)

	p := f.Policy()
	testutil.AssertEqual(t, p.FillRate, 8.0)
	testutil.AssertEqual(t, p.NormalCapacity, 100)
	testutil.AssertEqual(t, p.BurstCapacity, 120)
	testutil.AssertEqual(t, p.LowThreshold, 30)
	testutil.AssertEqual(t, p.ProtectionThreshold, 75)
	testutil.AssertEqual(t, p.MaxProtectedRequest, 2)
	testutil.AssertEqual(t, p.RefillInterval, 500*time.Millisecond)
	testutil.AssertEqual(t, p.StressedRefillInterval, 200*time.Millisecond)

	testutil.AssertEqual(t, len(f.Windows), 2)

	business, ok := f.Window("business-hours")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, business.FillRate, 16.0)
	testutil.AssertEqual(t, business.NormalCapacity, 100) // unchanged fields inherit the base

	_, ok = f.Window("weekend")
	testutil.AssertEqual(t, ok, false)
}

func TestParsePartialDocument(t *testing.T) {
	f, err := Parse([]byte("policy:\n  fill_rate: 4.0\n"))
	testutil.AssertNoError(t, err)

	p := f.Policy()
	testutil.AssertEqual(t, p.FillRate, 4.0)
	testutil.AssertEqual(t, p.NormalCapacity, 100) // defaults fill the gaps
	testutil.AssertEqual(t, p.BurstCapacity, 120)
	testutil.AssertEqual(t, p.RefillInterval, 500*time.Millisecond)
}

func TestParseZeroThreshold(t *testing.T) {
	// Zero is a meaningful threshold setting, distinct from omitting
	// the field.
	f, err := Parse([]byte("policy:\n  protection_threshold: 0\n  low_threshold: 0\n"))
	testutil.AssertNoError(t, err)

	p := f.Policy()
	testutil.AssertEqual(t, p.ProtectionThreshold, 0)
	testutil.AssertEqual(t, p.LowThreshold, 0)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "policy: ["},
		{"wrong type", "policy:\n  fill_rate: [1, 2]\n"},
		{"bad duration", "policy:\n  refill_interval: fast\n"},
		{"numeric duration", "policy:\n  refill_interval: 500\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			testutil.AssertError(t, err)
			if f != nil {
				t.Error("expected nil file on parse error")
			}
			if !errors.Is(err, gperrors.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestParseInvalidPolicy(t *testing.T) {
	f, err := Parse([]byte("policy:\n  burst_capacity: 50\n")) // below the default normal capacity
	testutil.AssertError(t, err)
	if f != nil {
		t.Error("expected nil file on validation error")
	}
	if !gperrors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestValidateWindows(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			"unnamed window",
			"windows:\n  - cron: \"0 9 * * *\"\n    policy:\n      fill_rate: 16.0\n",
		},
		{
			"duplicate window name",
			"windows:\n  - name: peak\n    cron: \"0 9 * * *\"\n  - name: peak\n    cron: \"0 19 * * *\"\n",
		},
		{
			"invalid cron expression",
			"windows:\n  - name: peak\n    cron: \"every morning\"\n",
		},
		{
			"window policy fails validation",
			"windows:\n  - name: peak\n    cron: \"0 9 * * *\"\n    policy:\n      burst_capacity: 50\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			testutil.AssertError(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("reads and parses a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		testutil.AssertNoError(t, os.WriteFile(path, []byte(fullDocument), 0o644))

		f, err := Load(path)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, f.Policy().FillRate, 8.0)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		testutil.AssertError(t, err)
	})
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(750 * time.Millisecond)
	out, err := d.MarshalYAML()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out.(string), "750ms")
}
