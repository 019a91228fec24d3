package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
)

func testConfig() MarginConfig {
	return MarginConfig{
		Perishable: map[directory.Grade]float64{
			directory.GradeS: 10, directory.GradeA: 12, directory.GradeB: 15,
			directory.GradeC: 18, directory.GradeD: 20, directory.GradeE: 25,
		},
		NonPerishable: map[directory.Grade]NonPerishableRule{
			directory.GradeS: {Grade: directory.GradeS, Shape: RuleShapeMultiplier, Multiplier: 1.15},
			directory.GradeA: {Grade: directory.GradeA, Shape: RuleShapeMultiplier, Multiplier: 1.3},
			directory.GradeB: {Grade: directory.GradeB, Shape: RuleShapeMultiplier, Multiplier: 1.35},
			directory.GradeC: {Grade: directory.GradeC, Shape: RuleShapeMultiplier, Multiplier: 1.4},
			directory.GradeD: {Grade: directory.GradeD, Shape: RuleShapeMinMid, MinMultiplier: 1.05, MidMultiplier: 0.95, MinMarginCheck: 0.12},
			directory.GradeE: {Grade: directory.GradeE, Shape: RuleShapeMultiplier, Multiplier: 1.5},
		},
	}
}

func perishableProduct() catalog.Product {
	return catalog.Product{ID: 1, Code: "TOMATO", Family: catalog.FamilyPerishable, PurchasePrice: 180, VendorID: 1}
}

func nonPerishableProduct() catalog.Product {
	return catalog.Product{ID: 2, Code: "RICE", Family: catalog.FamilyNonPerishable, PurchasePrice: 100, MinPrice: 95, MidPrice: 105, VendorID: 2}
}

func TestResolvePerishableUsesTrailingMaxPlusMargin(t *testing.T) {
	quote, err := Resolve(ResolveInput{
		Product:     perishableProduct(),
		Grade:       directory.GradeB,
		TrailingMax: 210,
		Config:      testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 225.0, quote.SellPrice, 0.001)
	assert.InDelta(t, 210.0, quote.BuyPrice, 0.001)
	assert.False(t, quote.Renegotiate)
}

func TestResolvePerishableFallsBackToPurchasePrice(t *testing.T) {
	quote, err := Resolve(ResolveInput{
		Product: perishableProduct(),
		Grade:   directory.GradeB,
		Config:  testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 195.0, quote.SellPrice, 0.001)
	assert.InDelta(t, 180.0, quote.BuyPrice, 0.001)
}

func TestResolveNonPerishableMultiplier(t *testing.T) {
	quote, err := Resolve(ResolveInput{
		Product: nonPerishableProduct(),
		Grade:   directory.GradeA,
		Config:  testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 130.0, quote.SellPrice, 0.001)
	assert.False(t, quote.Renegotiate)
}

func TestResolveGradeDTakesHigherOfMinMid(t *testing.T) {
	product := nonPerishableProduct()
	product.PurchasePrice = 90
	quote, err := Resolve(ResolveInput{
		Product: product,
		Grade:   directory.GradeD,
		Config:  testConfig(),
	})
	require.NoError(t, err)
	// min 95*1.05 = 99.75 vs mid 105*0.95 = 99.75, implied margin
	// (99.75-90)/99.75 = 9.8% under the 12% check.
	assert.InDelta(t, 99.75, quote.SellPrice, 0.001)
	assert.True(t, quote.Renegotiate)
}

func TestResolveGradeDNoRenegotiateAboveCheck(t *testing.T) {
	product := nonPerishableProduct()
	product.PurchasePrice = 80
	quote, err := Resolve(ResolveInput{
		Product: product,
		Grade:   directory.GradeD,
		Config:  testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 99.75, quote.SellPrice, 0.001)
	assert.False(t, quote.Renegotiate)
}

func TestResolveAppliesAdjustments(t *testing.T) {
	quote, err := Resolve(ResolveInput{
		Product:         nonPerishableProduct(),
		Grade:           directory.GradeA,
		BaseAdjustment:  -5,
		OrderAdjustment: 2.5,
		Config:          testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 127.5, quote.SellPrice, 0.001)
}

func TestResolveSnapshotWinsOverFormula(t *testing.T) {
	quote, err := Resolve(ResolveInput{
		Product:        nonPerishableProduct(),
		Grade:          directory.GradeA,
		SnapshotPrices: map[directory.Grade]float64{directory.GradeA: 142},
		BaseAdjustment: -2,
		Config:         testConfig(),
	})
	require.NoError(t, err)
	assert.InDelta(t, 140.0, quote.SellPrice, 0.001)
}

func TestResolveMissingRuleFails(t *testing.T) {
	config := testConfig()
	delete(config.NonPerishable, directory.GradeA)
	_, err := Resolve(ResolveInput{
		Product: nonPerishableProduct(),
		Grade:   directory.GradeA,
		Config:  config,
	})
	require.ErrorIs(t, err, ErrConfig)
}

func TestResolveWrongShapeFails(t *testing.T) {
	config := testConfig()
	config.NonPerishable[directory.GradeD] = NonPerishableRule{Grade: directory.GradeD, Shape: RuleShapeMultiplier, Multiplier: 1.2}
	_, err := Resolve(ResolveInput{
		Product: nonPerishableProduct(),
		Grade:   directory.GradeD,
		Config:  config,
	})
	require.ErrorIs(t, err, ErrConfig)
}

func TestResolveUnknownGradeFails(t *testing.T) {
	_, err := Resolve(ResolveInput{
		Product: nonPerishableProduct(),
		Grade:   directory.Grade("Z"),
		Config:  testConfig(),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestShapeForGrade(t *testing.T) {
	for _, g := range directory.Grades {
		expected := RuleShapeMultiplier
		if g == directory.GradeD {
			expected = RuleShapeMinMid
		}
		assert.Equal(t, expected, ShapeForGrade(g))
	}
}
