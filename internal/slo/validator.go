package slo

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Validator handles configuration validation. Schema validation catches
// structural problems; the extra rules enforce the semantic invariants that
// a schema cannot express (target bounds, window ordering, references).
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file.
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateFile loads and validates a configuration file. Returns the parsed
// config only when validation produced no errors.
func (v *Validator) ValidateFile(path string) (*Config, []ValidationError) {
	cfg, err := Load(path)
	if err != nil {
		return nil, []ValidationError{{File: path, Message: err.Error()}}
	}

	errs := v.Validate(path, cfg)
	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// Validate runs schema and semantic validation against a parsed config.
func (v *Validator) Validate(file string, cfg *Config) []ValidationError {
	var errs []ValidationError
	errs = append(errs, v.validateSchema(file, cfg)...)
	errs = append(errs, ValidateSemantics(file, cfg)...)
	return errs
}

// validateSchema validates the config against the JSON schema.
func (v *Validator) validateSchema(file string, cfg *Config) []ValidationError {
	var errs []ValidationError

	// Round-trip through YAML to get schema-friendly generic values.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return append(errs, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal config: %v", err),
		})
	}

	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return append(errs, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert config: %v", err),
		})
	}

	if err := v.schema.Validate(generic); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errs = append(errs, extractSchemaErrors(file, validationErr)...)
		} else {
			errs = append(errs, ValidationError{File: file, Message: err.Error()})
		}
	}

	return errs
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors.
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errs []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errs = append(errs, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errs = append(errs, extractSchemaErrors(file, cause)...)
	}

	return errs
}

// ValidateSemantics applies the invariants a schema cannot express. Any
// returned error is fatal at startup; misconfiguration is never silently
// corrected.
func ValidateSemantics(file string, cfg *Config) []ValidationError {
	var errs []ValidationError

	fail := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{
			File:    file,
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	idSeen := make(map[string]bool)
	for i, s := range cfg.SLOs {
		base := fmt.Sprintf("slos[%d]", i)

		if idSeen[s.ID] {
			fail(base+".id", "duplicate SLO ID %q", s.ID)
		}
		idSeen[s.ID] = true

		// target_ratio == 1.0 would divide the burn rate by zero; rejected
		// here so evaluation never has to handle it.
		if s.Target <= 0 || s.Target >= 1 {
			fail(base+".target", "target must be in (0, 1), got %v", s.Target)
		}

		if _, err := ParseDuration(s.Window); err != nil {
			fail(base+".window", "invalid duration: %v", err)
		}

		if s.EvaluationInterval != "" {
			if _, err := ParseDuration(s.EvaluationInterval); err != nil {
				fail(base+".evaluationInterval", "invalid duration: %v", err)
			}
		}

		switch s.SLI {
		case SLIAvailability, SLILatency, SLIQuality:
		default:
			fail(base+".sli", "unknown SLI type %q", s.SLI)
		}

		if s.LatencyThresholdMs != nil {
			if s.SLI != SLILatency {
				fail(base+".latencyThresholdMs", "only valid for latency SLIs")
			} else if *s.LatencyThresholdMs <= 0 {
				fail(base+".latencyThresholdMs", "must be positive, got %v", *s.LatencyThresholdMs)
			}
		}
	}

	nameSeen := make(map[string]bool)
	for i, r := range cfg.Rules {
		base := fmt.Sprintf("rules[%d]", i)

		if nameSeen[r.Name] {
			fail(base+".name", "duplicate rule name %q", r.Name)
		}
		nameSeen[r.Name] = true

		target := cfg.FindSLO(r.SLORef)
		if target == nil {
			fail(base+".sloRef", "unknown SLO %q", r.SLORef)
		}

		short, shortErr := ParseDuration(r.ShortWindow)
		if shortErr != nil {
			fail(base+".shortWindow", "invalid duration: %v", shortErr)
		}
		long, longErr := ParseDuration(r.LongWindow)
		if longErr != nil {
			fail(base+".longWindow", "invalid duration: %v", longErr)
		}
		if shortErr == nil && longErr == nil && short >= long {
			fail(base+".shortWindow", "shortWindow (%s) must be < longWindow (%s)", r.ShortWindow, r.LongWindow)
		}
		if longErr == nil && target != nil {
			if sloWindow, err := ParseDuration(target.Window); err == nil && long > sloWindow {
				fail(base+".longWindow", "longWindow (%s) exceeds SLO window (%s)", r.LongWindow, target.Window)
			}
		}

		if r.BurnRateThreshold <= 0 {
			fail(base+".burnRateThreshold", "must be positive, got %v", r.BurnRateThreshold)
		}

		if r.For != "" {
			if _, err := ParseDuration(r.For); err != nil {
				fail(base+".for", "invalid duration: %v", err)
			}
		}

		if r.Severity == "" {
			fail(base+".severity", "severity is required")
		}
	}

	green, yellow, orange := cfg.Policy.Thresholds()
	if !(orange < yellow && yellow < green && green <= 1) || orange < 0 {
		fail("policy", "zone thresholds must satisfy 0 <= orangeMin < yellowMin < greenMin <= 1 (got green=%v yellow=%v orange=%v)",
			green, yellow, orange)
	}

	return errs
}
