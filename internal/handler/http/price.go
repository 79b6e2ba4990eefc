package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/pkg/httputil"
	"github.com/utafrali/price-service/pkg/validator"
)

// Query parameter names.
const (
	paramApplicationDate = "applicationDate"
	paramProductID       = "productId"
	paramBrandID         = "brandId"
)

// statusClientClosedRequest is recorded when the client goes away before the
// price is resolved.
const statusClientClosedRequest = 499

// PriceResolver resolves the applicable price for a product and brand.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, at time.Time, productID, brandID int64) (*domain.Price, error)
}

// PriceHandler handles HTTP requests for price endpoints.
type PriceHandler struct {
	resolver PriceResolver
	location *time.Location
	logger   *slog.Logger
}

// NewPriceHandler creates a new price HTTP handler. Dates carrying an offset
// are converted to loc before their wall clock is used; nil means UTC.
func NewPriceHandler(resolver PriceResolver, loc *time.Location, logger *slog.Logger) *PriceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PriceHandler{
		resolver: resolver,
		location: loc,
		logger:   logger,
	}
}

// GetPrice handles GET /api/v1/prices?applicationDate=&productId=&brandId=
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	for _, name := range []string{paramApplicationDate, paramProductID, paramBrandID} {
		if query.Get(name) == "" {
			httputil.WriteParamError(w, r, "MISSING_PARAMETER",
				fmt.Sprintf("The required query parameter '%s' is missing.", name))
			return
		}
	}

	at, err := domain.ParseApplicationDate(query.Get(paramApplicationDate), h.location)
	if err != nil {
		httputil.WriteParamError(w, r, "INVALID_PARAMETER",
			fmt.Sprintf("Parameter '%s' must be an ISO-8601 date-time such as 2020-06-14T10:00:00.", paramApplicationDate))
		return
	}

	var params priceQueryParams
	if params.ProductID, err = parseID(query.Get(paramProductID)); err != nil {
		writeIntParamError(w, r, paramProductID)
		return
	}
	if params.BrandID, err = parseID(query.Get(paramBrandID)); err != nil {
		writeIntParamError(w, r, paramBrandID)
		return
	}
	if err := validator.Validate(params); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int64("price.product_id", params.ProductID),
		attribute.Int64("price.brand_id", params.BrandID),
		attribute.String("price.application_date", at.Format(domain.LocalLayout)),
	)

	price, err := h.resolver.ResolvePrice(r.Context(), at, params.ProductID, params.BrandID)
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		httputil.WriteJSON(w, statusClientClosedRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "CLIENT_CLOSED_REQUEST", Message: "request canceled"},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	span.SetAttributes(attribute.Int64("price.price_list", price.PriceList))

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: NewPriceResponse(price)})
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func writeIntParamError(w http.ResponseWriter, r *http.Request, name string) {
	httputil.WriteParamError(w, r, "INVALID_PARAMETER",
		fmt.Sprintf("Parameter '%s' must be an integer.", name))
}
