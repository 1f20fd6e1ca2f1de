package gateway

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	remoteErrorFormat          = "%s failed: %s"
	remoteStatusMessageFormat  = "request returned status %d"
	transportErrorFormat       = "%s failed: %v"
	remoteBodyErrorField       = "error"
	remoteBodyMessageField     = "message"
	maxRemoteMessageCharacters = 200
)

// TransportError reports that a request never produced an HTTP response.
type TransportError struct {
	Operation string
	Err       error
}

func (transportError *TransportError) Error() string {
	return fmt.Sprintf(transportErrorFormat, transportError.Operation, transportError.Err)
}

func (transportError *TransportError) Unwrap() error {
	return transportError.Err
}

// RemoteError reports a response whose status is outside the 2xx range.
// Status codes are not otherwise distinguished.
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (remoteError *RemoteError) Error() string {
	return fmt.Sprintf(remoteErrorFormat, remoteError.Operation, remoteError.Message())
}

// Message derives a human readable message from the response body. JSON bodies contribute their
// "error" or "message" field, plain bodies their trimmed text.
func (remoteError *RemoteError) Message() string {
	body := strings.TrimSpace(remoteError.Body)
	if body == "" {
		return fmt.Sprintf(remoteStatusMessageFormat, remoteError.StatusCode)
	}
	if gjson.Valid(body) {
		for _, field := range []string{remoteBodyErrorField, remoteBodyMessageField} {
			if value := gjson.Get(body, field); value.Type == gjson.String && strings.TrimSpace(value.Str) != "" {
				return strings.TrimSpace(value.Str)
			}
		}
		return fmt.Sprintf(remoteStatusMessageFormat, remoteError.StatusCode)
	}
	if runes := []rune(body); len(runes) > maxRemoteMessageCharacters {
		body = string(runes[:maxRemoteMessageCharacters])
	}
	return body
}
