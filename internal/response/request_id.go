package response

import "github.com/google/uuid"

// HeaderRequestID carries the request ID, echoed back in Metadata.RequestID.
const HeaderRequestID = "X-Request-ID"

// NewRequestID generates a unique request ID for an outgoing call.
func NewRequestID() string {
	return uuid.New().String()
}
