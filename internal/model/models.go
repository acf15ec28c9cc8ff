package model

import "time"

// Machine is a tracked asset identified by its serial number. QR codes and
// tickets reference machines; a machine with tickets cannot be deleted.
type Machine struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Serial    string    `gorm:"uniqueIndex;not null;size:64"`
	Type      string    `gorm:"not null;size:64"`
	Label     string    `gorm:"size:200"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// QRToken links a printed QR code to a machine. A nil ExpiresAt means the
// token never expires.
type QRToken struct {
	ID        string     `gorm:"primaryKey;size:36"`
	MachineID string     `gorm:"index;not null;size:36"`
	Token     string     `gorm:"uniqueIndex;not null;size:128"`
	ExpiresAt *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Ticket is one operator-submitted problem report. Tickets are immutable
// after creation except for the admin-managed status field.
type Ticket struct {
	ID            string    `gorm:"primaryKey;size:36"`
	MachineID     string    `gorm:"index;not null;size:36"`
	OperatorName  string    `gorm:"not null;size:120"`
	OperatorPhone string    `gorm:"not null;size:40"`
	Summary       string    `gorm:"not null;size:255"`
	Status        string    `gorm:"not null;size:16"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// EmailLog records the terminal outcome of one email dispatch attempt for a
// ticket. Rows are append-only; corrections require a new row.
type EmailLog struct {
	ID                string    `gorm:"primaryKey;size:36"`
	TicketID          string    `gorm:"index;not null;size:36"`
	ToAddress         string    `gorm:"not null;size:254"`
	Subject           string    `gorm:"size:255"`
	Body              string    `gorm:"type:text"`
	Status            string    `gorm:"index;not null;size:16"`
	ProviderMessageID string    `gorm:"size:128"`
	Error             string    `gorm:"type:text"`
	PayloadHash       string    `gorm:"size:64"`
	CreatedAt         time.Time `gorm:"index;autoCreateTime"`
}

// AuditEvent is an append-only record of an administrative or
// security-relevant action.
type AuditEvent struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Actor      string    `gorm:"not null;size:120"`
	Action     string    `gorm:"not null;size:120"`
	EntityType string    `gorm:"not null;size:60"`
	EntityID   string    `gorm:"size:36"`
	Note       string    `gorm:"size:500"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
