package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// mapHTTPError converts a non-2xx backend response into an error,
// pulling a descriptive message out of the body when one is present.
func mapHTTPError(resp *http.Response) error {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%s (HTTP %d)", message, resp.StatusCode)
}

// mapNetworkError converts a network-level error (connection refused,
// timeout, DNS failure) into an error with a descriptive message.
func mapNetworkError(err error) error {
	return fmt.Errorf("backend connection error: %w", err)
}

// extractErrorMessage tries to parse the response body as a
// chatErrorResponse and returns the error message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
