package domain

import (
	"context"
	"errors"
)

// Request moves AmountMinor (e.g. öre) to a connected account.
type Request struct {
	AmountMinor    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
	Metadata       map[string]string
}

type Result struct {
	TransferID string
}

// Transferer is the payment rail used to pay clubs.
type Transferer interface {
	CreateTransfer(ctx context.Context, req Request) (Result, error)
}

var (
	ErrInvalidConfig      = errors.New("transfer_invalid_config")
	ErrInvalidAmount      = errors.New("transfer_invalid_amount")
	ErrMissingDestination = errors.New("transfer_missing_destination")
	ErrResponseInvalid    = errors.New("transfer_response_invalid")
)

// RailError is a rejection reported by the payment rail.
type RailError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *RailError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "transfer_request_failed"
}
