package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned for a price row that breaks a catalog invariant.
var ErrInvalidPrice = errors.New("invalid price")

// Price is one price-list entry: the amount a product of a brand sells for
// during the closed window [StartDate, EndDate]. When windows overlap the
// entry with the highest Priority wins.
type Price struct {
	PriceList int64           `json:"price_list"`
	ProductID int64           `json:"product_id"`
	Priority  int             `json:"priority"`
	Currency  Currency        `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Brand     Brand           `json:"brand"`
}

// Validate checks the row invariants every store must uphold.
func (p Price) Validate() error {
	var errs []error
	if p.PriceList <= 0 {
		errs = append(errs, fmt.Errorf("price list must be positive, got %d", p.PriceList))
	}
	if p.ProductID <= 0 {
		errs = append(errs, fmt.Errorf("product id must be positive, got %d", p.ProductID))
	}
	if !p.Currency.IsValid() {
		errs = append(errs, fmt.Errorf("unsupported currency %s", p.Currency))
	}
	if p.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("amount must not be negative, got %s", p.Amount))
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		errs = append(errs, errors.New("start and end date are required"))
	} else if p.StartDate.After(p.EndDate) {
		errs = append(errs, fmt.Errorf("start date %s is after end date %s",
			p.StartDate.Format(LocalLayout), p.EndDate.Format(LocalLayout)))
	}
	if err := p.Brand.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %d: %w", ErrInvalidPrice, p.PriceList, errors.Join(errs...))
}

// Local returns p with its window expressed as wall clocks, the form stores
// keep and compare. Validate the result, not the input: two offsets can order
// a window one way as instants and the other way as wall clocks.
func (p Price) Local() Price {
	p.StartDate = LocalInstant(p.StartDate)
	p.EndDate = LocalInstant(p.EndDate)
	return p
}

// AppliesAt reports whether t falls inside the closed validity window.
func (p Price) AppliesAt(t time.Time) bool {
	t = LocalInstant(t)
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// Matches reports whether p is a candidate for q: same product, same brand
// and a window containing q.At.
func (p Price) Matches(q PriceQuery) bool {
	return p.ProductID == q.ProductID && p.Brand.ID == q.BrandID && p.AppliesAt(q.At)
}

// Outranks reports whether p beats other when both apply: higher priority
// first, then the lower price list id.
func (p Price) Outranks(other Price) bool {
	if p.Priority != other.Priority {
		return p.Priority > other.Priority
	}
	return p.PriceList < other.PriceList
}
