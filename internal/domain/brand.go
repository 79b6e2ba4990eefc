package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBrand is returned for a brand without a positive id or a name.
var ErrInvalidBrand = errors.New("invalid brand")

// Brand is the brand a price applies to. Brands are looked up, never created
// by the price service.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewBrand returns a validated Brand.
func NewBrand(id int64, name string) (Brand, error) {
	b := Brand{ID: id, Name: strings.TrimSpace(name)}
	if err := b.Validate(); err != nil {
		return Brand{}, err
	}
	return b, nil
}

// Validate checks that the brand has a positive id and a non-empty name.
func (b Brand) Validate() error {
	if b.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidBrand, b.ID)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBrand)
	}
	return nil
}
