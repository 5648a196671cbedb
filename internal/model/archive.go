package model

import "time"

// ArchiveMember is a frozen copy of one member's balance.
type ArchiveMember struct {
	ID       string     `json:"id" validate:"required"`
	Name     string     `json:"name" validate:"required"`
	Division string     `json:"division" validate:"required"`
	Points   int        `json:"points"`
	History  []AuditLog `json:"history,omitempty"`
}

// Archive is an immutable point-in-time snapshot of a tenant's roster.
type Archive struct {
	ID              string          `json:"id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Timestamp       time.Time       `json:"timestamp" validate:"required"`
	MemberSnapshots []ArchiveMember `json:"memberSnapshots" validate:"required,dive"`
	AdminID         string          `json:"adminId" validate:"required"`
}
