package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Extraction is the shape the model is asked to produce. It is only used for
// a best-effort check; the raw model text is what callers receive.
type Extraction struct {
	Basis             Basis      `json:"basis" validate:"required"`
	Currency          string     `json:"currency" validate:"required,len=3,alpha"`
	TotalIncludingTax *Amount    `json:"total_including_tax"`
	Items             []LineItem `json:"items" validate:"required,dive"`
}

// Basis identifies the document.
type Basis struct {
	Author            string `json:"author"`
	Date              string `json:"date"`
	Number            string `json:"number"`
	Type              string `json:"type"`
	DeliveryCondition string `json:"delivery_condition"`
}

type LineItem struct {
	Description     string  `json:"description" validate:"required"`
	ExtraInfo       string  `json:"extra_info"`
	Quantity        *Amount `json:"quantity"`
	Unit            string  `json:"unit"`
	UnitPrice       *Amount `json:"unit_price"`
	Discount        *Amount `json:"discount"`
	DiscountedPrice *Amount `json:"discounted_price"`
}

// Amount accepts a JSON number or a numeric string such as "1,234.50".
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("amount %q is not numeric", s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}
