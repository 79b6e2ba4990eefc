// Package client calls a running price service over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/price-service/internal/domain"
	handler "github.com/utafrali/price-service/internal/handler/http"
	"github.com/utafrali/price-service/pkg/httpclient"
)

const pricesPath = "/api/v1/prices"

// PriceClient resolves prices against a remote price service.
type PriceClient struct {
	baseURL string
	http    *httpclient.Client
}

// NewPriceClient returns a client for the service at baseURL, e.g.
// http://localhost:8080.
func NewPriceClient(baseURL string, cfg httpclient.Config) (*PriceClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid price service URL %q", baseURL)
	}
	return &PriceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpclient.New(cfg),
	}, nil
}

// ResolvePrice asks the service for the price applicable at at. Error
// responses come back as AppErrors, so errors.Is works with the same
// sentinels as a local resolution.
func (c *PriceClient) ResolvePrice(ctx context.Context, at time.Time, productID, brandID int64) (*handler.PriceResponse, error) {
	q := url.Values{}
	q.Set("applicationDate", domain.LocalInstant(at).Format(domain.LocalLayout))
	q.Set("productId", strconv.FormatInt(productID, 10))
	q.Set("brandId", strconv.FormatInt(brandID, 10))

	resp, err := c.http.Get(ctx, c.baseURL+pricesPath+"?"+q.Encode(), uuid.NewString())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "price-service")
	}
	defer resp.Body.Close()

	var envelope struct {
		Data *handler.PriceResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("decode price response: missing data")
	}
	return envelope.Data, nil
}
