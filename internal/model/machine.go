package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	machineSerialMaxLength = 64
	machineTypeMaxLength   = 64
	machineLabelMaxLength  = 200

	errorMessageInvalidMachineSerial = "model: machine serial is required and limited to 64 characters"
	errorMessageInvalidMachineType   = "model: machine type is required and limited to 64 characters"
	errorMessageInvalidMachineLabel  = "model: machine label is limited to 200 characters"
)

var (
	// ErrInvalidMachineSerial indicates a missing or oversized serial.
	ErrInvalidMachineSerial = errors.New(errorMessageInvalidMachineSerial)
	// ErrInvalidMachineType indicates a missing or oversized machine type.
	ErrInvalidMachineType = errors.New(errorMessageInvalidMachineType)
	// ErrInvalidMachineLabel indicates an oversized label.
	ErrInvalidMachineLabel = errors.New(errorMessageInvalidMachineLabel)
)

// MachineInput carries the fields needed to register a machine.
type MachineInput struct {
	Serial string
	Type   string
	Label  string
}

// NewMachine validates and normalizes the input and returns an unsaved
// machine.
func NewMachine(input MachineInput) (Machine, error) {
	trimmedSerial := strings.TrimSpace(input.Serial)
	if trimmedSerial == "" || len(trimmedSerial) > machineSerialMaxLength {
		return Machine{}, ErrInvalidMachineSerial
	}
	trimmedType := strings.TrimSpace(input.Type)
	if trimmedType == "" || len(trimmedType) > machineTypeMaxLength {
		return Machine{}, ErrInvalidMachineType
	}
	trimmedLabel := strings.TrimSpace(input.Label)
	if len(trimmedLabel) > machineLabelMaxLength {
		return Machine{}, ErrInvalidMachineLabel
	}
	return Machine{
		ID:     uuid.NewString(),
		Serial: trimmedSerial,
		Type:   trimmedType,
		Label:  trimmedLabel,
	}, nil
}

// NewQRToken mints a token for the machine. A zero ttl produces a token that
// never expires.
func NewQRToken(machineID string, ttl time.Duration) (QRToken, error) {
	trimmedMachineID := strings.TrimSpace(machineID)
	if trimmedMachineID == "" {
		return QRToken{}, ErrInvalidTicketMachineID
	}
	token := QRToken{
		ID:        uuid.NewString(),
		MachineID: trimmedMachineID,
		Token:     uuid.NewString(),
	}
	if ttl > 0 {
		expiry := time.Now().UTC().Add(ttl)
		token.ExpiresAt = &expiry
	}
	return token, nil
}

// Expired reports whether the token has an expiry in the past.
func (token QRToken) Expired(now time.Time) bool {
	return token.ExpiresAt != nil && token.ExpiresAt.Before(now)
}
