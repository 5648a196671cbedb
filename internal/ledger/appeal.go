package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// AppealInput is a member's request to reverse a transaction.
type AppealInput struct {
	TransactionID string `json:"transactionId"`
	MemberID      string `json:"memberId"`
	Reason        string `json:"reason"`
	Evidence      string `json:"evidence,omitempty"`
}

func (l *Ledger) Appeal(id string) (model.Appeal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := indexOf(l.data.Appeals, func(a model.Appeal) bool { return a.ID == id })
	if i < 0 {
		return model.Appeal{}, false
	}
	return l.data.Appeals[i], true
}

// Appeals returns the tenant's appeals, newest first.
func (l *Ledger) Appeals(adminID string) []model.Appeal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Appeals, func(a model.Appeal) bool { return a.AdminID == adminID })
}

// PendingAppeals returns the tenant's appeals still awaiting a decision.
func (l *Ledger) PendingAppeals(adminID string) []model.Appeal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Appeals, func(a model.Appeal) bool {
		return a.AdminID == adminID && a.Status == model.AppealPending
	})
}

// FileAppeal opens a PENDING appeal. The appeal inherits the member's tenant.
// The transaction reference is not checked here; an appeal against a
// transaction that is already gone is rejected harmlessly at resolution.
func (l *Ledger) FileAppeal(in AppealInput) (model.Appeal, error) {
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.MemberID = strings.TrimSpace(in.MemberID)
	in.Reason = strings.TrimSpace(in.Reason)
	switch {
	case in.TransactionID == "":
		return model.Appeal{}, fmt.Errorf("%w: transaction id is required", ErrInvalidArgument)
	case in.MemberID == "":
		return model.Appeal{}, fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	case in.Reason == "":
		return model.Appeal{}, fmt.Errorf("%w: appeal reason is required", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mi := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == in.MemberID })
	if mi < 0 {
		return model.Appeal{}, fmt.Errorf("member %s: %w", in.MemberID, ErrNotFound)
	}

	now := l.timestamp()
	a := model.Appeal{
		ID:            ids.Generate(ids.Appeal, "", now, idsOf(l.data.Appeals, appealID)),
		TransactionID: in.TransactionID,
		MemberID:      in.MemberID,
		Reason:        in.Reason,
		Status:        model.AppealPending,
		Timestamp:     now,
		AdminID:       l.data.Members[mi].AdminID,
		Evidence:      in.Evidence,
	}
	l.data.Appeals = prepend(l.data.Appeals, a)

	metrics.AppealsFiled.Inc()
	l.emit(Change{
		Entity:  "appeal",
		Action:  "created",
		IDs:     []string{a.ID},
		AdminID: a.AdminID,
		Data:    model.StoreData{Appeals: slices.Clone(l.data.Appeals)},
	})
	return a, nil
}

// ResolveAppeal moves a PENDING appeal to APPROVED or REJECTED. Approval
// reverts the appealed transaction; rejection records a zero-point note.
// Resolving an appeal that is already decided is a no-op and returns false.
func (l *Ledger) ResolveAppeal(id, actorID string, decision model.AppealStatus, note string) (bool, error) {
	if decision != model.AppealApproved && decision != model.AppealRejected {
		return false, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	if actorID == "" {
		return false, fmt.Errorf("%w: actor id is required", ErrInvalidArgument)
	}
	note = strings.TrimSpace(note)

	l.mu.Lock()
	defer l.mu.Unlock()

	ai := indexOf(l.data.Appeals, func(a model.Appeal) bool { return a.ID == id })
	if ai < 0 {
		return false, fmt.Errorf("appeal %s: %w", id, ErrNotFound)
	}
	a := l.data.Appeals[ai]
	if a.Status.Terminal() {
		l.logger.Info("appeal already resolved", "appeal", a.ID, "status", a.Status)
		return false, nil
	}

	data := model.StoreData{}
	switch decision {
	case model.AppealApproved:
		details := fmt.Sprintf("Appeal %s approved: points reverted", a.ID)
		if note != "" {
			details += " (" + note + ")"
		}
		if _, ok := l.revert(a.TransactionID, actorID, details, "appeal"); ok {
			data.Members = slices.Clone(l.data.Members)
			data.Transactions = slices.Clone(l.data.Transactions)
		} else {
			l.logger.Warn("approved appeal for inactive transaction", "appeal", a.ID, "transaction", a.TransactionID)
		}
	case model.AppealRejected:
		details := fmt.Sprintf("Appeal %s rejected", a.ID)
		if note != "" {
			details += ": " + note
		}
		l.annotate(a.MemberID, a.AdminID, actorID, details)
	}

	l.data.Appeals[ai].Status = decision

	data.AuditLogs = slices.Clone(l.data.AuditLogs)
	data.Appeals = slices.Clone(l.data.Appeals)

	metrics.AppealsResolved.WithLabelValues(string(decision)).Inc()
	l.emit(Change{
		Entity:  "appeal",
		Action:  strings.ToLower(string(decision)),
		IDs:     []string{a.ID},
		AdminID: a.AdminID,
		Data:    data,
	})
	return true, nil
}
