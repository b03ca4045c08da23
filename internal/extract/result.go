package extract

import (
	"encoding/json"
	"fmt"

	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseExtraction decodes raw into the expected schema and checks the few
// fields every usable answer has. It never modifies raw.
func ParseExtraction(raw string) (*models.Extraction, error) {
	var ext models.Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return nil, fmt.Errorf("not a JSON object of the expected shape: %w", err)
	}
	if err := validate.Struct(&ext); err != nil {
		return nil, fmt.Errorf("schema check failed: %w", err)
	}
	return &ext, nil
}
