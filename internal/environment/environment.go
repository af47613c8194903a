// Package environment produces the external stimuli injected into the
// simulation: daily weather drawn from a smooth noise field and periodic
// law announcements. Both feed system events that shift agent attributes
// population-wide.
package environment

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"capsim/internal/entropy"
)

// WeatherKind classifies one day's weather.
type WeatherKind string

const (
	WeatherClear WeatherKind = "Clear"
	WeatherRain  WeatherKind = "Rain"
	WeatherStorm WeatherKind = "Storm"
)

// Weather is the condition for one simulation day.
type Weather struct {
	Kind     WeatherKind
	Severity float64 // 0..1, smooth across days
}

// EnergyDelta is the population-wide energy shift the day's weather applies.
func (w Weather) EnergyDelta() float64 {
	switch w.Kind {
	case WeatherStorm:
		return -0.30 * w.Severity
	case WeatherRain:
		return -0.10 * w.Severity
	default:
		return 0.05
	}
}

// LawKind enumerates the law announcements.
type LawKind string

const (
	LawTaxIncrease   LawKind = "TaxIncrease"
	LawSubsidy       LawKind = "Subsidy"
	LawMediaRegulate LawKind = "MediaRegulation"
)

// Law is one announcement and its population-wide attribute shifts.
type Law struct {
	Kind           LawKind
	FinancialDelta float64
	Receptivity    float64
}

// Model generates the environment timeline deterministically from the run
// seed. Sampling the same day twice returns the same condition.
type Model struct {
	noise opensimplex.Noise
	seed  int64
}

// NewModel builds the environment model for a run seed.
func NewModel(seed int64) *Model {
	return &Model{noise: opensimplex.NewNormalized(seed), seed: seed}
}

// WeatherForDay samples the noise field at the given day. Severity varies
// smoothly; the kind falls out of severity bands.
func (m *Model) WeatherForDay(day int) Weather {
	severity := m.noise.Eval2(float64(day)*0.35, 0)
	kind := WeatherClear
	switch {
	case severity >= 0.8:
		kind = WeatherStorm
	case severity >= 0.55:
		kind = WeatherRain
	}
	return Weather{Kind: kind, Severity: severity}
}

// LawForDay draws the day's announcement, if any, from a per-day derived
// stream. Most days have none.
func (m *Model) LawForDay(day int) (Law, bool) {
	src := entropy.Derive(m.seed, int64(day), 7)
	if src.Float64() >= 0.15 {
		return Law{}, false
	}
	switch src.Intn(3) {
	case 0:
		return Law{Kind: LawTaxIncrease, FinancialDelta: -0.10, Receptivity: 0.05}, true
	case 1:
		return Law{Kind: LawSubsidy, FinancialDelta: 0.10, Receptivity: 0}, true
	default:
		return Law{Kind: LawMediaRegulate, FinancialDelta: 0, Receptivity: -0.10}, true
	}
}
