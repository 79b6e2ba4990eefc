package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/price-service/pkg/errors"
	"github.com/utafrali/price-service/pkg/httputil"
)

const maxErrorBody = 1 << 20

// ParseResponseError reads the body of a non-2xx response and translates it
// back into an AppError. A body in the httputil.Response envelope keeps its
// code and message; anything else yields a plain error carrying the status
// and raw body. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var envelope httputil.Response
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return mapDownstreamError(resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
}

func mapDownstreamError(status int, code, message string) error {
	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = apperrors.ErrNotFound
	case status == http.StatusServiceUnavailable:
		sentinel = apperrors.ErrServiceUnavail
	case status >= 400 && status < 500:
		sentinel = apperrors.ErrInvalidInput
	default:
		sentinel = apperrors.ErrInternal
	}
	return &apperrors.AppError{Code: code, Message: message, Status: status, Err: sentinel}
}
