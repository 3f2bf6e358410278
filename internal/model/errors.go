package model

import "errors"

// Errors shared by the domain and its provider adapters.
var (
	// ErrAddressNotFound is returned by geocoders when an address has no match.
	ErrAddressNotFound = errors.New("address not found")

	// ErrInvalidSignature is returned when a webhook payload fails provider
	// signature verification.
	ErrInvalidSignature = errors.New("payment webhook: invalid signature")
)
