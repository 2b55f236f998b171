package asaas

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingAPIKey is a configuration problem: no credential for the
// requested environment.
var ErrMissingAPIKey = errors.New("asaas: missing API key")

// APIError is a structured rejection from the gateway: a machine code plus a
// human description, as returned in the errors array of the response body.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("asaas: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("asaas: request failed with status %d", e.StatusCode)
}

// IsInvalidCustomer reports whether err is the gateway rejecting a stale
// customer reference, e.g. after an environment switch. The order flow
// re-registers the customer once when it sees this.
func IsInvalidCustomer(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "invalid_customer"
}

func apiErrorFromResponse(status int, body []byte) *APIError {
	var parsed struct {
		Errors []struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"errors"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		apiErr.Code = parsed.Errors[0].Code
		apiErr.Description = parsed.Errors[0].Description
	}
	return apiErr
}
