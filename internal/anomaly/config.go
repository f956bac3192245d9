package anomaly

import (
	"fmt"

	"fieldops-sim/internal/config"
)

// Range is an inclusive numeric parameter range.
type Range struct {
	Lo float64
	Hi float64
}

// Rule configures one anomaly kind: how likely it is to be injected, the
// severity interval reported for it, and its named parameter ranges.
type Rule struct {
	Probability  float64
	SeverityLow  float64
	SeverityHigh float64
	Parameters   map[string]Range
}

// Param returns the named parameter range, or the given fallback when the
// rule does not define it.
func (r Rule) Param(name string, fallback Range) Range {
	if p, ok := r.Parameters[name]; ok {
		return p
	}
	return fallback
}

// Config is an immutable injection configuration. Updates return a new
// value instead of mutating shared state, so concurrent passes cannot
// interfere with each other.
type Config struct {
	InjectionProbability float64
	MaxPerMission        int
	rules                map[Kind]Rule
}

// Rule returns the rule for a kind, if configured.
func (c Config) Rule(k Kind) (Rule, bool) {
	r, ok := c.rules[k]
	return r, ok
}

// WithInjectionProbability returns a copy with the global gate changed.
func (c Config) WithInjectionProbability(p float64) Config {
	out := c.clone()
	out.InjectionProbability = p
	return out
}

// WithRule returns a copy with the rule for one kind replaced.
func (c Config) WithRule(k Kind, r Rule) Config {
	out := c.clone()
	out.rules[k] = r
	return out
}

func (c Config) clone() Config {
	rules := make(map[Kind]Rule, len(c.rules))
	for k, r := range c.rules {
		params := make(map[string]Range, len(r.Parameters))
		for name, rng := range r.Parameters {
			params[name] = rng
		}
		r.Parameters = params
		rules[k] = r
	}
	return Config{
		InjectionProbability: c.InjectionProbability,
		MaxPerMission:        c.MaxPerMission,
		rules:                rules,
	}
}

// DefaultConfig returns the stock injection configuration.
func DefaultConfig() Config {
	cfg, err := FromSimulation(config.Default())
	if err != nil {
		panic(err) // built-in defaults are always well-formed
	}
	return cfg
}

// FromSimulation builds an injection Config from the YAML configuration.
func FromSimulation(sc *config.SimulationConfig) (Config, error) {
	rules := make(map[Kind]Rule, len(sc.Injection.Rules))
	for name, rc := range sc.Injection.Rules {
		if rc.SeverityLow >= rc.SeverityHigh {
			return Config{}, fmt.Errorf("anomaly: rule %s has inverted severity range", name)
		}
		params := make(map[string]Range, len(rc.Parameters))
		for pname, bounds := range rc.Parameters {
			if len(bounds) != 2 {
				return Config{}, fmt.Errorf("anomaly: rule %s parameter %s needs [lo, hi]", name, pname)
			}
			params[pname] = Range{Lo: bounds[0], Hi: bounds[1]}
		}
		rules[Kind(name)] = Rule{
			Probability:  rc.Probability,
			SeverityLow:  rc.SeverityLow,
			SeverityHigh: rc.SeverityHigh,
			Parameters:   params,
		}
	}
	return Config{
		InjectionProbability: sc.Injection.GlobalProbability,
		MaxPerMission:        sc.Injection.MaxPerMission,
		rules:                rules,
	}, nil
}
