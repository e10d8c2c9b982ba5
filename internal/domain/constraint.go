package domain

// Explicit constraint keys accepted from callers
const (
	ConstraintVoltage  = "voltage"
	ConstraintCurrent  = "current"
	ConstraintPackage  = "package"
	ConstraintCategory = "category"
)

// Part categories the parser can infer
const (
	CategoryPower     = "power"
	CategoryMCU       = "mcu"
	CategorySensor    = "sensor"
	CategoryInterface = "interface"
	CategoryAnalog    = "analog"
	CategoryDiscrete  = "discrete"
	CategoryMemory    = "memory"
)

// ConstraintSet is the normalized form of a caller's requirement.
// It is produced once per query and must not be mutated afterwards;
// use the accessor methods when a copy of a slice or map is needed.
type ConstraintSet struct {
	Query          string            `json:"query"`
	Keywords       []string          `json:"keywords"`
	TargetVoltage  string            `json:"targetVoltage,omitempty"`
	TargetCurrent  string            `json:"targetCurrent,omitempty"`
	TargetPackage  string            `json:"targetPackage,omitempty"`
	CategoryHint   string            `json:"categoryHint,omitempty"`
	SearchKeywords []string          `json:"searchKeywords"`
	Constraints    map[string]string `json:"constraints,omitempty"`
}

// HasQuantity reports whether any voltage, current or package target is set
func (c ConstraintSet) HasQuantity() bool {
	return c.TargetVoltage != "" || c.TargetCurrent != "" || c.TargetPackage != ""
}

// ExplicitConstraints returns a copy of the caller-supplied constraints
func (c ConstraintSet) ExplicitConstraints() map[string]string {
	if len(c.Constraints) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Constraints))
	for k, v := range c.Constraints {
		out[k] = v
	}
	return out
}
