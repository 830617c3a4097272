package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/flakespec/packages/host"
)

// TestOverride adjusts retry behavior for a single test without touching
// its source. Only non-fixable flakes are affected; fixable flakes are
// capped at one retry by definition.
type TestOverride struct {
	MaxRetries int `yaml:"maxRetries"`
}

// Overrides is the parsed per-test override file. Keys are test names in
// their report form, "Suite/Name".
type Overrides struct {
	Tests map[string]TestOverride `yaml:"tests"`
}

// LoadOverrides parses a YAML override file:
//
//	tests:
//	  BillingSuite/TestInvoiceSync:
//	    maxRetries: 4
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing overrides file %s: %w", path, err)
	}
	for name, ov := range o.Tests {
		if ov.MaxRetries < 1 {
			return nil, fmt.Errorf("overrides file %s: test %q: maxRetries must be >= 1", path, name)
		}
	}
	return &o, nil
}

// Lookup implements the engine's override hook.
func (o *Overrides) Lookup(id host.Identity) (int, bool) {
	if o == nil || o.Tests == nil {
		return 0, false
	}
	ov, ok := o.Tests[id.String()]
	if !ok {
		return 0, false
	}
	return ov.MaxRetries, true
}
