package http

// EnqueueRequest is the body of POST /api/v1/messages.
type EnqueueRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Kind       string   `json:"kind" validate:"required"`
	FromName   string   `json:"from_name,omitempty"`
	Body       string   `json:"body,omitempty"`
	ObjectRef  string   `json:"object_ref,omitempty"`
	// AccountID identifies the requesting account; zero means
	// system-originated.
	AccountID int64 `json:"account_id,omitempty"`
}

// EnqueueResponse returns one message hash per recipient, in request order.
type EnqueueResponse struct {
	MessageHashes []string `json:"message_hashes"`
}

// SuppressionResponse is returned by the unsubscribe/resubscribe endpoints.
type SuppressionResponse struct {
	Email string `json:"email,omitempty"`
	// Changed is false when the request was a no-op: the address was already
	// in the requested state, or the token resolved to nothing.
	Changed bool `json:"changed"`
}

// GenericErrorResponse for API errors.
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
