package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Effect is one action's attribute delta row. Costs are negative deltas.
type Effect struct {
	EnergyLevel         float64 `yaml:"energy_level"`
	TimeBudget          float64 `yaml:"time_budget"`
	SocialStatus        float64 `yaml:"social_status"`
	FinancialCapability float64 `yaml:"financial_capability"`
	TrendReceptivity    float64 `yaml:"trend_receptivity"`
}

// EffectsDoc is the structured document supplying the action effect table
// and shop weights. Loaded from YAML and validated; absent fields keep the
// compiled defaults.
type EffectsDoc struct {
	Post        Effect             `yaml:"post"`
	SelfDev     Effect             `yaml:"self_dev"`
	Purchase    map[string]Effect  `yaml:"purchase"` // keys l1, l2, l3
	ShopWeights map[string]float64 `yaml:"shop_weights,omitempty"`

	// Purchase gate thresholds on financial_capability, by level.
	PurchaseThresholds map[string]float64 `yaml:"purchase_thresholds"`
}

// DefaultEffects returns the built-in effect table.
func DefaultEffects() *EffectsDoc {
	return &EffectsDoc{
		Post: Effect{
			TimeBudget:   -0.20,
			EnergyLevel:  -0.50,
			SocialStatus: 0.10,
		},
		SelfDev: Effect{
			TimeBudget:  -1.00,
			EnergyLevel: 0.80,
		},
		Purchase: map[string]Effect{
			"l1": {FinancialCapability: -0.05, TimeBudget: -0.50, EnergyLevel: 0.20},
			"l2": {FinancialCapability: -0.50, TimeBudget: -0.50, EnergyLevel: 0.40, SocialStatus: 0.05},
			"l3": {FinancialCapability: -2.00, TimeBudget: -1.00, EnergyLevel: 0.60, SocialStatus: 0.20},
		},
		PurchaseThresholds: map[string]float64{"l1": 0.05, "l2": 0.50, "l3": 2.00},
	}
}

// LoadEffects reads the effects document from path. An empty path returns
// the defaults.
func LoadEffects(path string) (*EffectsDoc, error) {
	doc := DefaultEffects()
	if path == "" {
		return doc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: effects document: %v", ErrConfig, err)
	}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: effects document %s: %v", ErrConfig, path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// PurchaseLevel returns the effect row for a 1-based purchase level.
func (d *EffectsDoc) PurchaseLevel(level int) Effect {
	return d.Purchase[levelKey(level)]
}

// PurchaseThreshold returns the financial gate for a 1-based level.
func (d *EffectsDoc) PurchaseThreshold(level int) float64 {
	return d.PurchaseThresholds[levelKey(level)]
}

func levelKey(level int) string {
	return fmt.Sprintf("l%d", level)
}

// Validate checks the document is internally consistent: all three purchase
// levels present, thresholds non-decreasing, and costs pointing the right
// way.
func (d *EffectsDoc) Validate() error {
	for _, key := range []string{"l1", "l2", "l3"} {
		if _, ok := d.Purchase[key]; !ok {
			return fmt.Errorf("%w: effects: missing purchase level %s", ErrConfig, key)
		}
		if _, ok := d.PurchaseThresholds[key]; !ok {
			return fmt.Errorf("%w: effects: missing purchase threshold %s", ErrConfig, key)
		}
	}
	if d.PurchaseThresholds["l1"] > d.PurchaseThresholds["l2"] ||
		d.PurchaseThresholds["l2"] > d.PurchaseThresholds["l3"] {
		return fmt.Errorf("%w: effects: purchase thresholds must be non-decreasing", ErrConfig)
	}
	if d.Post.EnergyLevel > 0 || d.Post.TimeBudget > 0 {
		return fmt.Errorf("%w: effects: post energy/time deltas must be costs", ErrConfig)
	}
	if d.SelfDev.TimeBudget > 0 {
		return fmt.Errorf("%w: effects: self_dev time delta must be a cost", ErrConfig)
	}
	for prof, w := range d.ShopWeights {
		if w <= 0 {
			return fmt.Errorf("%w: effects: shop weight for %s must be > 0", ErrConfig, prof)
		}
	}
	return nil
}
