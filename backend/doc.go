// Package backend is the HTTP client for the meeting backend: meeting
// creation, join (credential issuance), and attendee display-name lookup.
//
// The backend is an external service with a narrow request/response
// contract. This client adds nothing on top of it — no retries, no caching —
// because retry policy belongs to the caller. Failures surface as errors
// classifiable with errors.Is(err, ErrRequestFailed); error codes returned in
// a response body are wrapped in *APIError.
package backend
