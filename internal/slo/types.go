package slo

// SLIType identifies the kind of indicator an SLO measures.
type SLIType string

const (
	SLIAvailability SLIType = "availability"
	SLILatency      SLIType = "latency"
	SLIQuality      SLIType = "quality"
)

// Config is the parsed engine configuration file.
type Config struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	SLOs       []SLO      `yaml:"slos" json:"slos"`
	Rules      []BurnRule `yaml:"rules" json:"rules"`
	Policy     Policy     `yaml:"policy,omitempty" json:"policy,omitempty"`
}

// SLO is a single service level objective definition.
type SLO struct {
	ID      string  `yaml:"id" json:"id"`
	Service string  `yaml:"service" json:"service"`
	SLI     SLIType `yaml:"sli" json:"sli"`
	Target  float64 `yaml:"target" json:"target"`
	Window  string  `yaml:"window" json:"window"`

	// LatencyThresholdMs classifies latency observations that carry a value
	// but no explicit good flag. Only meaningful for latency SLIs.
	LatencyThresholdMs *float64 `yaml:"latencyThresholdMs,omitempty" json:"latencyThresholdMs,omitempty"`

	// EvaluationInterval overrides the engine-wide tick for this SLO.
	EvaluationInterval string `yaml:"evaluationInterval,omitempty" json:"evaluationInterval,omitempty"`
}

// BurnRule is a multi-window burn rate alert rule.
type BurnRule struct {
	Name              string  `yaml:"name" json:"name"`
	SLORef            string  `yaml:"sloRef" json:"sloRef"`
	ShortWindow       string  `yaml:"shortWindow" json:"shortWindow"`
	LongWindow        string  `yaml:"longWindow" json:"longWindow"`
	BurnRateThreshold float64 `yaml:"burnRateThreshold" json:"burnRateThreshold"`
	For               string  `yaml:"for,omitempty" json:"for,omitempty"`
	Severity          string  `yaml:"severity" json:"severity"`
}

// Policy holds the budget-zone boundaries. Remaining budget at or above
// GreenMin is Green, at or above YellowMin is Yellow, at or above OrangeMin
// is Orange, below OrangeMin is Red.
type Policy struct {
	GreenMin  *float64 `yaml:"greenMin,omitempty" json:"greenMin,omitempty"`
	YellowMin *float64 `yaml:"yellowMin,omitempty" json:"yellowMin,omitempty"`
	OrangeMin *float64 `yaml:"orangeMin,omitempty" json:"orangeMin,omitempty"`
}

// Default zone boundaries.
const (
	DefaultGreenMin  = 0.75
	DefaultYellowMin = 0.25
	DefaultOrangeMin = 0.0
)

// Thresholds returns the configured zone boundaries with defaults applied.
func (p Policy) Thresholds() (green, yellow, orange float64) {
	green, yellow, orange = DefaultGreenMin, DefaultYellowMin, DefaultOrangeMin
	if p.GreenMin != nil {
		green = *p.GreenMin
	}
	if p.YellowMin != nil {
		yellow = *p.YellowMin
	}
	if p.OrangeMin != nil {
		orange = *p.OrangeMin
	}
	return green, yellow, orange
}

// FindSLO returns the SLO with the given ID, or nil.
func (c *Config) FindSLO(id string) *SLO {
	for i := range c.SLOs {
		if c.SLOs[i].ID == id {
			return &c.SLOs[i]
		}
	}
	return nil
}

// RulesFor returns the burn rules referencing the given SLO ID.
func (c *Config) RulesFor(sloID string) []BurnRule {
	var rules []BurnRule
	for _, r := range c.Rules {
		if r.SLORef == sloID {
			rules = append(rules, r)
		}
	}
	return rules
}

// ValidationError represents a validation error for a specific file.
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
