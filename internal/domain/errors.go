package domain

import "errors"

// Failure taxonomy for the delivery pipeline. Webhook-side errors map to
// coarse HTTP statuses; consumer-side errors decide retry vs dead-letter.
var (
	// ErrInvalidSignature marks a request that failed HMAC verification.
	// Rejected with 400, never parsed further.
	ErrInvalidSignature = errors.New("invalid request signature")

	// ErrUnknownChannelType marks an event whose channel_type is outside
	// the closed mapping. Fatal for the request (500).
	ErrUnknownChannelType = errors.New("unknown channel type")

	// ErrMalformedEvent marks a verified body that cannot be parsed into a
	// typed event. Fatal for the request (500).
	ErrMalformedEvent = errors.New("malformed event payload")

	// ErrMalformedJob marks a queue payload missing required fields.
	// Dead-lettered immediately: retrying cannot fix the payload.
	ErrMalformedJob = errors.New("malformed translation job")

	// ErrDeliveryFailed marks a non-success acknowledgment from the chat
	// delivery API. Retryable via the queue's backoff policy.
	ErrDeliveryFailed = errors.New("chat delivery not acknowledged")
)
