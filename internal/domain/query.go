package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidQuery is returned by NewPriceQuery for malformed input.
var ErrInvalidQuery = errors.New("invalid price query")

// PriceQuery identifies the price to resolve: a product and brand at an
// application-local instant.
type PriceQuery struct {
	ProductID int64
	BrandID   int64
	At        time.Time
}

// NewPriceQuery validates the ids and normalizes at with LocalInstant.
// An unknown product or brand is not an input error.
func NewPriceQuery(at time.Time, productID, brandID int64) (PriceQuery, error) {
	switch {
	case at.IsZero():
		return PriceQuery{}, fmt.Errorf("%w: application date is required", ErrInvalidQuery)
	case productID <= 0:
		return PriceQuery{}, fmt.Errorf("%w: product id must be positive, got %d", ErrInvalidQuery, productID)
	case brandID <= 0:
		return PriceQuery{}, fmt.Errorf("%w: brand id must be positive, got %d", ErrInvalidQuery, brandID)
	}
	return PriceQuery{ProductID: productID, BrandID: brandID, At: LocalInstant(at)}, nil
}

func (q PriceQuery) String() string {
	return fmt.Sprintf("product=%d brand=%d at=%s", q.ProductID, q.BrandID, q.At.Format(LocalLayout))
}

// LocalLayout is the wire format of application-local instants.
const LocalLayout = "2006-01-02T15:04:05"

// localLayouts are the accepted offset-free forms. Fractional seconds are
// accepted after the seconds field by time.Parse.
var localLayouts = []string{LocalLayout, "2006-01-02 15:04:05"}

// ParseApplicationDate parses an application-local date-time such as
// 2020-06-14T10:00:00 or 2020-06-14 10:00:00.000. An RFC 3339 value with an
// offset is first converted to loc, so its wall clock in loc is used. A nil
// loc means UTC.
func ParseApplicationDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return LocalInstant(t), nil
		}
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: application date %q is not an ISO-8601 date-time", ErrInvalidQuery, s)
	}
	if loc == nil {
		loc = time.UTC
	}
	return LocalInstant(t.In(loc)), nil
}

// LocalInstant keeps the wall clock of t and drops its zone, expressing the
// result in UTC. Price windows are application-local date-times with no
// offset, so every instant is compared in this form.
func LocalInstant(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}
