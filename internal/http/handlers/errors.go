// Package handlers defines the read-only ops API endpoints and the error
// code constants used in their responses.
//
// Codes are lowercase snake_case and stable, so clients can branch on them
// programmatically. Generic codes mirror the usual HTTP status semantics;
// list_failed is reserved for persistence errors behind the listing
// endpoints.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeListFailed       = "list_failed"
)
