package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
	"github.com/vnykmshr/gopermit/pkg/permit"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// PolicySpec mirrors permit.Policy field for field. Unset fields inherit
// from the policy it is merged over, so a file only needs to name the
// knobs it changes. The two thresholds use pointers because zero is a
// meaningful setting for them (zero disables the behavior), while for
// every other field zero simply means unset.
type PolicySpec struct {
	FillRate               float64  `yaml:"fill_rate,omitempty"`
	NormalCapacity         int      `yaml:"normal_capacity,omitempty"`
	BurstCapacity          int      `yaml:"burst_capacity,omitempty"`
	LowThreshold           *int     `yaml:"low_threshold,omitempty"`
	ProtectionThreshold    *int     `yaml:"protection_threshold,omitempty"`
	MaxProtectedRequest    int      `yaml:"max_protected_request,omitempty"`
	RefillInterval         Duration `yaml:"refill_interval,omitempty"`
	StressedRefillInterval Duration `yaml:"stressed_refill_interval,omitempty"`
}

// merge overlays s's set fields onto base.
func (s PolicySpec) merge(base permit.Policy) permit.Policy {
	if s.FillRate > 0 {
		base.FillRate = s.FillRate
	}
	if s.NormalCapacity > 0 {
		base.NormalCapacity = s.NormalCapacity
	}
	if s.BurstCapacity > 0 {
		base.BurstCapacity = s.BurstCapacity
	}
	if s.LowThreshold != nil {
		base.LowThreshold = *s.LowThreshold
	}
	if s.ProtectionThreshold != nil {
		base.ProtectionThreshold = *s.ProtectionThreshold
	}
	if s.MaxProtectedRequest > 0 {
		base.MaxProtectedRequest = s.MaxProtectedRequest
	}
	if s.RefillInterval > 0 {
		base.RefillInterval = time.Duration(s.RefillInterval)
	}
	if s.StressedRefillInterval > 0 {
		base.StressedRefillInterval = time.Duration(s.StressedRefillInterval)
	}
	return base
}

// Window names a cron expression and the policy overrides to apply at
// its firing times. Overrides stack on the file's base policy.
type Window struct {
	Name   string     `yaml:"name"`
	Cron   string     `yaml:"cron"`
	Policy PolicySpec `yaml:"policy"`
}

// File is one policy document: a base policy block plus optional
// scheduled windows.
type File struct {
	Base    PolicySpec `yaml:"policy"`
	Windows []Window   `yaml:"windows,omitempty"`
}

// Load reads and parses a policy file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a policy document and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse policy file: %v", errors.ErrInvalidConfiguration, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the base policy, every window's cron expression, and
// every window's effective policy.
func (f *File) Validate() error {
	if err := f.Policy().Validate(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(f.Windows))
	for i, w := range f.Windows {
		field := fmt.Sprintf("windows[%d]", i)
		if w.Name == "" {
			return errors.NewValidationError("config", field+".name", w.Name, "cannot be empty").
				WithHint("name each window so schedule logs and lookups can refer to it")
		}
		if _, dup := seen[w.Name]; dup {
			return errors.NewValidationError("config", field+".name", w.Name, "duplicate window name")
		}
		seen[w.Name] = struct{}{}

		if _, err := cron.ParseStandard(w.Cron); err != nil {
			return errors.NewValidationError("config", field+".cron", w.Cron,
				fmt.Sprintf("invalid cron expression: %v", err))
		}
		if err := w.Policy.merge(f.Policy()).Validate(); err != nil {
			return fmt.Errorf("window %q: %w", w.Name, err)
		}
	}
	return nil
}

// Policy returns the file's base policy: the library defaults overlaid
// with the document's policy block.
func (f *File) Policy() permit.Policy {
	return f.Base.merge(permit.DefaultPolicy())
}

// Window returns the named window's effective policy.
func (f *File) Window(name string) (permit.Policy, bool) {
	for _, w := range f.Windows {
		if w.Name == name {
			return w.Policy.merge(f.Policy()), true
		}
	}
	return permit.Policy{}, false
}
