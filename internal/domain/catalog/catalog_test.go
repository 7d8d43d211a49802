package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, Chocolalala, list[0].Recipe)
	assert.Equal(t, DarkTemptation, list[1].Recipe)
	assert.Equal(t, SooChocolate, list[2].Recipe)

	price, err := c.UnitPrice(DarkTemptation)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.90").Equal(price))
}

func TestUnitPrice_Unknown(t *testing.T) {
	_, err := Default().UnitPrice("MACARON")

	var urErr *UnknownRecipeError
	require.ErrorAs(t, err, &urErr)
	assert.Equal(t, Recipe("MACARON"), urErr.Recipe)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cookies []Cookie
	}{
		{
			name:    "blank recipe",
			cookies: []Cookie{{Price: decimal.NewFromInt(1)}},
		},
		{
			name:    "zero price",
			cookies: []Cookie{{Recipe: "A", Price: decimal.Zero}},
		},
		{
			name: "duplicate",
			cookies: []Cookie{
				{Recipe: "A", Price: decimal.NewFromInt(1)},
				{Recipe: "A", Price: decimal.NewFromInt(2)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cookies...)
			require.Error(t, err)
		})
	}
}

func TestExplore(t *testing.T) {
	c := Default()

	t.Run("full match only", func(t *testing.T) {
		got, err := c.Explore("CHOCO")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("pattern", func(t *testing.T) {
		got, err := c.Explore(".*CHOCOLA.*")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Chocolalala, got[0].Recipe)
		assert.Equal(t, SooChocolate, got[1].Recipe)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := c.Explore("(")
		require.Error(t, err)
	})
}
