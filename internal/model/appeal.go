package model

import "time"

type AppealStatus string

const (
	AppealPending  AppealStatus = "PENDING"
	AppealApproved AppealStatus = "APPROVED"
	AppealRejected AppealStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s AppealStatus) Terminal() bool {
	return s == AppealApproved || s == AppealRejected
}

type Appeal struct {
	ID            string       `json:"id" validate:"required"`
	TransactionID string       `json:"transactionId" validate:"required"`
	MemberID      string       `json:"memberId" validate:"required"`
	Reason        string       `json:"reason" validate:"required"`
	Status        AppealStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
	Timestamp     time.Time    `json:"timestamp" validate:"required"`
	AdminID       string       `json:"adminId" validate:"required"`
	Evidence      string       `json:"evidence,omitempty"`
}
