package permit

import (
	"testing"
	"time"

	"github.com/vnykmshr/gopermit/internal/testutil"
	"github.com/vnykmshr/gopermit/pkg/common/errors"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	testutil.AssertEqual(t, p.FillRate, 8.0)
	testutil.AssertEqual(t, p.NormalCapacity, 100)
	testutil.AssertEqual(t, p.BurstCapacity, 120)
	testutil.AssertEqual(t, p.LowThreshold, 30)
	testutil.AssertEqual(t, p.ProtectionThreshold, 75)
	testutil.AssertEqual(t, p.MaxProtectedRequest, 2)
	testutil.AssertEqual(t, p.RefillInterval, 500*time.Millisecond)
	testutil.AssertEqual(t, p.StressedRefillInterval, 200*time.Millisecond)

	testutil.AssertNoError(t, p.Validate())
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"zero fill rate", func(p *Policy) { p.FillRate = 0 }},
		{"negative fill rate", func(p *Policy) { p.FillRate = -8 }},
		{"zero normal capacity", func(p *Policy) { p.NormalCapacity = 0 }},
		{"negative normal capacity", func(p *Policy) { p.NormalCapacity = -100 }},
		{"zero burst capacity", func(p *Policy) { p.BurstCapacity = 0 }},
		{"burst below normal", func(p *Policy) { p.BurstCapacity = 99 }},
		{"negative low threshold", func(p *Policy) { p.LowThreshold = -1 }},
		{"low threshold above normal", func(p *Policy) { p.LowThreshold = 101 }},
		{"negative protection threshold", func(p *Policy) { p.ProtectionThreshold = -1 }},
		{"protection threshold above normal", func(p *Policy) { p.ProtectionThreshold = 101 }},
		{"zero max protected request", func(p *Policy) { p.MaxProtectedRequest = 0 }},
		{"zero refill interval", func(p *Policy) { p.RefillInterval = 0 }},
		{"negative refill interval", func(p *Policy) { p.RefillInterval = -time.Second }},
		{"zero stressed interval", func(p *Policy) { p.StressedRefillInterval = 0 }},
		{"stressed slower than normal", func(p *Policy) { p.StressedRefillInterval = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)

			err := p.Validate()
			testutil.AssertError(t, err)
			if !errors.IsValidationError(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}

	t.Run("boundary values are valid", func(t *testing.T) {
		p := DefaultPolicy()
		p.BurstCapacity = p.NormalCapacity // no burst headroom is allowed
		p.LowThreshold = 0
		p.ProtectionThreshold = 0
		p.StressedRefillInterval = p.RefillInterval
		testutil.AssertNoError(t, p.Validate())
	})
}

func TestNewSafe(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		limiter, err := NewSafe(8.0, 100)
		testutil.AssertNoError(t, err)
		defer limiter.Close()

		testutil.AssertEqual(t, limiter.FillRate(), 8.0)
		testutil.AssertEqual(t, limiter.Capacity(), 100)
		testutil.AssertEqual(t, limiter.BurstCapacity(), 120)
		testutil.AssertEqual(t, limiter.Tokens(), 100.0)
		testutil.AssertEqual(t, limiter.Protected(), false)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		tests := []struct {
			name     string
			fillRate float64
			capacity int
		}{
			{"zero rate", 0, 100},
			{"negative rate", -1, 100},
			{"zero capacity", 8, 0},
			{"negative capacity", 8, -10},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				limiter, err := NewSafe(tt.fillRate, tt.capacity)
				testutil.AssertError(t, err)
				if limiter != nil {
					t.Error("expected nil limiter on error")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			})
		}
	})
}

func TestNewSafeScalesThresholds(t *testing.T) {
	limiter, err := NewSafe(4.0, 10)
	testutil.AssertNoError(t, err)
	defer limiter.Close()

	p := limiter.Policy()
	testutil.AssertEqual(t, p.NormalCapacity, 10)
	testutil.AssertEqual(t, p.BurstCapacity, 12)
	testutil.AssertEqual(t, p.LowThreshold, 3)
	testutil.AssertEqual(t, p.ProtectionThreshold, 7)
	testutil.AssertEqual(t, p.MaxProtectedRequest, 2)
}

func TestNewWithConfigSafe(t *testing.T) {
	t.Run("initial tokens default to normal capacity", func(t *testing.T) {
		limiter, err := NewWithConfigSafe(Config{
			Policy:        quietPolicy(),
			InitialTokens: -1,
		})
		testutil.AssertNoError(t, err)
		defer limiter.Close()

		testutil.AssertEqual(t, limiter.Tokens(), 100.0)
		testutil.AssertEqual(t, limiter.Protected(), false)
	})

	t.Run("explicit initial tokens are honored", func(t *testing.T) {
		limiter, err := NewWithConfigSafe(Config{
			Policy:        quietPolicy(),
			InitialTokens: 7,
		})
		testutil.AssertNoError(t, err)
		defer limiter.Close()

		testutil.AssertEqual(t, limiter.Tokens(), 7.0)
	})

	t.Run("starting below the protection threshold engages it", func(t *testing.T) {
		limiter, err := NewWithConfigSafe(Config{
			Policy:        quietPolicy(),
			InitialTokens: 50,
		})
		testutil.AssertNoError(t, err)
		defer limiter.Close()

		testutil.AssertEqual(t, limiter.Protected(), true)
	})

	t.Run("initial tokens above burst capacity are rejected", func(t *testing.T) {
		limiter, err := NewWithConfigSafe(Config{
			Policy:        quietPolicy(),
			InitialTokens: 121,
		})
		testutil.AssertError(t, err)
		if limiter != nil {
			t.Error("expected nil limiter on error")
		}
	})

	t.Run("invalid policy is rejected", func(t *testing.T) {
		p := quietPolicy()
		p.FillRate = -1
		limiter, err := NewWithConfigSafe(Config{Policy: p, InitialTokens: -1})
		testutil.AssertError(t, err)
		if limiter != nil {
			t.Error("expected nil limiter on error")
		}
	})

	t.Run("nil clock and logger fall back to defaults", func(t *testing.T) {
		limiter, err := NewWithConfigSafe(Config{
			Policy:        quietPolicy(),
			InitialTokens: -1,
		})
		testutil.AssertNoError(t, err)
		defer limiter.Close()

		granted := limiter.TryAcquireN(5)
		testutil.AssertEqual(t, granted, 5)
	})
}
