package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountAcceptsNumbersAndNumericStrings(t *testing.T) {
	var item LineItem
	raw := `{"description":"Pump","quantity":3,"unit_price":"1,234.50","discount":null,"discounted_price":""}`
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	require.NotNil(t, item.Quantity)
	assert.Equal(t, Amount(3), *item.Quantity)
	require.NotNil(t, item.UnitPrice)
	assert.Equal(t, Amount(1234.5), *item.UnitPrice)
	assert.Nil(t, item.Discount)
}

func TestAmountRejectsText(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`"on request"`), &a))
}
