package errors

import "errors"

var (
	ErrSessionNotFound = errors.New("booking session not found")

	ErrUnknownIntent = errors.New("unknown intent")

	ErrSlotNotOpen = errors.New("slot is not currently open")
)
