package http

import (
	"github.com/utafrali/price-service/internal/domain"
)

// PriceResponse is the transfer object returned for a resolved price. The
// brand is exposed by id only.
type PriceResponse struct {
	PriceList int64  `json:"price_list"`
	ProductID int64  `json:"product_id"`
	BrandID   int64  `json:"brand_id"`
	Priority  int    `json:"priority"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// NewPriceResponse maps a domain price to its transfer object.
func NewPriceResponse(p *domain.Price) PriceResponse {
	return PriceResponse{
		PriceList: p.PriceList,
		ProductID: p.ProductID,
		BrandID:   p.Brand.ID,
		Priority:  p.Priority,
		Price:     p.Amount.StringFixed(2),
		Currency:  p.Currency.String(),
		StartDate: p.StartDate.Format(domain.LocalLayout),
		EndDate:   p.EndDate.Format(domain.LocalLayout),
	}
}

// priceQueryParams carries the parsed query string through validation.
type priceQueryParams struct {
	ProductID int64 `query:"productId" validate:"gt=0"`
	BrandID   int64 `query:"brandId" validate:"gt=0"`
}
