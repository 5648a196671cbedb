package model

import "time"

// Transaction is an active application of a rule's points to a member.
// PointsSnapshot freezes the rule value at the time it was applied.
type Transaction struct {
	ID             string    `json:"id" validate:"required"`
	MemberID       string    `json:"memberId" validate:"required"`
	ContributorID  string    `json:"contributorId" validate:"required"`
	RuleID         string    `json:"ruleId" validate:"required"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
	PointsSnapshot int       `json:"pointsSnapshot"`
	AdminID        string    `json:"adminId" validate:"required"`
	Evidence       string    `json:"evidence,omitempty"`
}

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditLog is an append-only record of a balance change or an annotation.
// UPDATE entries carry zero points and never affect a balance.
type AuditLog struct {
	ID            string      `json:"id" validate:"required"`
	Timestamp     time.Time   `json:"timestamp" validate:"required"`
	Action        AuditAction `json:"action" validate:"required,oneof=CREATE DELETE UPDATE"`
	MemberID      string      `json:"memberId" validate:"required"`
	ContributorID string      `json:"contributorId" validate:"required"`
	Details       string      `json:"details"`
	Points        int         `json:"points"`
	AdminID       string      `json:"adminId" validate:"required"`
	Evidence      string      `json:"evidence,omitempty"`
}

// AffectsBalance reports whether the entry records an applied balance change.
func (l AuditLog) AffectsBalance() bool {
	return l.Action == AuditCreate || l.Action == AuditDelete
}
