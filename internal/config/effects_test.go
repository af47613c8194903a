package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEffectsValidate(t *testing.T) {
	doc := DefaultEffects()
	require.NoError(t, doc.Validate())

	assert.Equal(t, -0.20, doc.Post.TimeBudget)
	assert.Equal(t, -0.50, doc.Post.EnergyLevel)
	assert.Equal(t, 0.10, doc.Post.SocialStatus)
	assert.Equal(t, -1.00, doc.SelfDev.TimeBudget)
	assert.Equal(t, 0.80, doc.SelfDev.EnergyLevel)
}

func TestPurchaseLevels(t *testing.T) {
	doc := DefaultEffects()
	assert.Equal(t, -0.05, doc.PurchaseLevel(1).FinancialCapability)
	assert.Equal(t, -0.50, doc.PurchaseLevel(2).FinancialCapability)
	assert.Equal(t, -2.00, doc.PurchaseLevel(3).FinancialCapability)

	assert.Equal(t, 0.05, doc.PurchaseThreshold(1))
	assert.Equal(t, 0.50, doc.PurchaseThreshold(2))
	assert.Equal(t, 2.00, doc.PurchaseThreshold(3))
}

func TestLoadEffectsEmptyPathReturnsDefaults(t *testing.T) {
	doc, err := LoadEffects("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEffects(), doc)
}

func TestLoadEffectsOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.yaml")
	raw := `
post:
  time_budget: -0.4
  energy_level: -0.6
  social_status: 0.2
shop_weights:
  Businessman: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	doc, err := LoadEffects(path)
	require.NoError(t, err)
	assert.Equal(t, -0.4, doc.Post.TimeBudget)
	assert.Equal(t, 0.2, doc.Post.SocialStatus)
	assert.Equal(t, 2.0, doc.ShopWeights["Businessman"])
	// Untouched sections keep defaults.
	assert.Equal(t, -1.00, doc.SelfDev.TimeBudget)
	assert.Equal(t, -0.05, doc.PurchaseLevel(1).FinancialCapability)
}

func TestLoadEffectsRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.yaml")
	raw := `
post:
  time_budget: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))
	_, err := LoadEffects(path)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadEffectsMissingFile(t *testing.T) {
	_, err := LoadEffects(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidateThresholdOrdering(t *testing.T) {
	doc := DefaultEffects()
	doc.PurchaseThresholds["l1"] = 3.0
	assert.ErrorIs(t, doc.Validate(), ErrConfig)
}

func TestValidateShopWeights(t *testing.T) {
	doc := DefaultEffects()
	doc.ShopWeights = map[string]float64{"Artist": -1}
	assert.ErrorIs(t, doc.Validate(), ErrConfig)
}
