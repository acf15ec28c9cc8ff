package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	// TicketStatusNew marks a ticket nobody has looked at yet.
	TicketStatusNew = "new"
	// TicketStatusOpen marks a ticket being worked on.
	TicketStatusOpen = "open"
	// TicketStatusClosed marks a resolved ticket.
	TicketStatusClosed = "closed"

	operatorNameMaxLength  = 120
	operatorPhoneMaxLength = 40
	summaryMaxLength       = 255

	errorMessageInvalidTicketMachineID = "model: ticket machine id is required"
	errorMessageInvalidOperatorName    = "model: operator name is required and limited to 120 characters"
	errorMessageInvalidOperatorPhone   = "model: operator phone is required and limited to 40 characters"
	errorMessageInvalidSummary         = "model: summary is required and limited to 255 characters"
	errorMessageInvalidTicketStatus    = "model: unknown ticket status"
)

var (
	// ErrInvalidTicketMachineID indicates the machine reference was omitted.
	ErrInvalidTicketMachineID = errors.New(errorMessageInvalidTicketMachineID)
	// ErrInvalidOperatorName indicates a missing or oversized operator name.
	ErrInvalidOperatorName = errors.New(errorMessageInvalidOperatorName)
	// ErrInvalidOperatorPhone indicates a missing or oversized operator phone.
	ErrInvalidOperatorPhone = errors.New(errorMessageInvalidOperatorPhone)
	// ErrInvalidSummary indicates a missing or oversized problem summary.
	ErrInvalidSummary = errors.New(errorMessageInvalidSummary)
	// ErrInvalidTicketStatus indicates a status outside the ticket lifecycle.
	ErrInvalidTicketStatus = errors.New(errorMessageInvalidTicketStatus)
)

var ticketStatuses = map[string]struct{}{
	TicketStatusNew:    {},
	TicketStatusOpen:   {},
	TicketStatusClosed: {},
}

// TicketInput carries the fields needed to create a ticket.
type TicketInput struct {
	MachineID     string
	OperatorName  string
	OperatorPhone string
	Summary       string
}

// ValidateTicketContent checks the operator-supplied fields of a submission
// before any machine lookup or persistence happens.
func ValidateTicketContent(operatorName string, operatorPhone string, summary string) error {
	trimmedName := strings.TrimSpace(operatorName)
	if trimmedName == "" || len(trimmedName) > operatorNameMaxLength {
		return ErrInvalidOperatorName
	}
	trimmedPhone := strings.TrimSpace(operatorPhone)
	if trimmedPhone == "" || len(trimmedPhone) > operatorPhoneMaxLength {
		return ErrInvalidOperatorPhone
	}
	trimmedSummary := strings.TrimSpace(summary)
	if trimmedSummary == "" || len(trimmedSummary) > summaryMaxLength {
		return ErrInvalidSummary
	}
	return nil
}

// NewTicket validates and normalizes the input and returns an unsaved ticket
// in the new status.
func NewTicket(input TicketInput) (Ticket, error) {
	trimmedMachineID := strings.TrimSpace(input.MachineID)
	if trimmedMachineID == "" {
		return Ticket{}, ErrInvalidTicketMachineID
	}
	if contentErr := ValidateTicketContent(input.OperatorName, input.OperatorPhone, input.Summary); contentErr != nil {
		return Ticket{}, contentErr
	}
	return Ticket{
		ID:            uuid.NewString(),
		MachineID:     trimmedMachineID,
		OperatorName:  strings.TrimSpace(input.OperatorName),
		OperatorPhone: strings.TrimSpace(input.OperatorPhone),
		Summary:       strings.TrimSpace(input.Summary),
		Status:        TicketStatusNew,
	}, nil
}

// ValidateTicketStatus rejects statuses outside the ticket lifecycle.
func ValidateTicketStatus(status string) error {
	if _, known := ticketStatuses[status]; !known {
		return ErrInvalidTicketStatus
	}
	return nil
}
