package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_Validate(t *testing.T) {
	valid := func(price string) *Product {
		return &Product{Name: "Mug", Price: decimal.RequireFromString(price), StockQuantity: 3}
	}

	for _, price := range []string{"0.01", "10.5", "10.50", "10.500", "9999999999.99"} {
		assert.NoError(t, valid(price).Validate(), price)
	}

	for _, price := range []string{"0", "-1.00", "0.001", "10.005", "10000000000"} {
		err := valid(price).Validate()
		assert.True(t, errors.Is(err, ErrValidation), price)
	}

	p := valid("1.00")
	p.Name = "  "
	assert.True(t, errors.Is(p.Validate(), ErrValidation))

	p = valid("1.00")
	p.StockQuantity = -1
	assert.True(t, errors.Is(p.Validate(), ErrValidation))
}
