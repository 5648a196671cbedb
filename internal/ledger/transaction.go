package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// UnknownRule is recorded as the details of a transaction whose rule could
// not be resolved.
const UnknownRule = "Unknown Rule"

// TransactionInput applies a rule to a member. PointsSnapshot, when set,
// overrides the rule's current value with one the caller already captured.
type TransactionInput struct {
	MemberID       string `json:"memberId"`
	ContributorID  string `json:"contributorId"`
	RuleID         string `json:"ruleId"`
	Evidence       string `json:"evidence,omitempty"`
	PointsSnapshot *int   `json:"pointsSnapshot,omitempty"`
}

func (l *Ledger) Transaction(id string) (model.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := indexOf(l.data.Transactions, func(t model.Transaction) bool { return t.ID == id })
	if i < 0 {
		return model.Transaction{}, false
	}
	return l.data.Transactions[i], true
}

// Transactions returns the tenant's active transactions, newest first.
func (l *Ledger) Transactions(adminID string) []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Transactions, func(t model.Transaction) bool { return t.AdminID == adminID })
}

// MemberTransactions returns the active transactions of one member.
func (l *Ledger) MemberTransactions(memberID string) []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Transactions, func(t model.Transaction) bool { return t.MemberID == memberID })
}

// AuditLogs returns the tenant's audit trail, newest first.
func (l *Ledger) AuditLogs(adminID string) []model.AuditLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.AuditLogs, func(a model.AuditLog) bool { return a.AdminID == adminID })
}

// RecordTransaction applies a rule to a member. The transaction, the balance
// change and the CREATE audit entry are committed together. A missing rule is
// not fatal: the entry is recorded as "Unknown Rule" with the caller's snapshot.
func (l *Ledger) RecordTransaction(in TransactionInput) (model.Transaction, error) {
	in.MemberID = strings.TrimSpace(in.MemberID)
	in.ContributorID = strings.TrimSpace(in.ContributorID)
	in.RuleID = strings.TrimSpace(in.RuleID)
	if in.MemberID == "" || in.ContributorID == "" || in.RuleID == "" {
		return model.Transaction{}, fmt.Errorf("%w: member, contributor and rule ids are required", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mi := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == in.MemberID })
	if mi < 0 {
		return model.Transaction{}, fmt.Errorf("member %s: %w", in.MemberID, ErrNotFound)
	}
	member := l.data.Members[mi]

	details := UnknownRule
	points := 0
	rule, found := l.rule(in.RuleID)
	if found {
		details = rule.Description
		points = rule.Points
	}
	if in.PointsSnapshot != nil {
		points = *in.PointsSnapshot
	}
	ruleType := model.RuleTypeFor(points)
	if found {
		ruleType = rule.Type
	}
	scope := ruleScope(ruleType)

	now := l.timestamp()
	tx := model.Transaction{
		ID:             ids.Generate(ids.Transaction, scope, now, idsOf(l.data.Transactions, transactionID)),
		MemberID:       member.ID,
		ContributorID:  in.ContributorID,
		RuleID:         in.RuleID,
		Timestamp:      now,
		PointsSnapshot: points,
		AdminID:        member.AdminID,
		Evidence:       in.Evidence,
	}
	entry := model.AuditLog{
		ID:            ids.Generate(ids.AuditLog, scope, now, idsOf(l.data.AuditLogs, auditLogID)),
		Timestamp:     now,
		Action:        model.AuditCreate,
		MemberID:      member.ID,
		ContributorID: in.ContributorID,
		Details:       details,
		Points:        points,
		AdminID:       member.AdminID,
		Evidence:      in.Evidence,
	}

	l.data.Transactions = prepend(l.data.Transactions, tx)
	l.applyDelta(member.ID, points)
	l.data.AuditLogs = prepend(l.data.AuditLogs, entry)

	metrics.TransactionsRecorded.WithLabelValues(string(ruleType)).Inc()
	if !found {
		l.logger.Warn("transaction recorded against unknown rule", "transaction", tx.ID, "rule", in.RuleID)
	}

	l.emit(Change{
		Entity:  "transaction",
		Action:  "created",
		IDs:     []string{tx.ID},
		AdminID: tx.AdminID,
		Data: model.StoreData{
			Members:      slices.Clone(l.data.Members),
			Transactions: slices.Clone(l.data.Transactions),
			AuditLogs:    slices.Clone(l.data.AuditLogs),
		},
	})
	return tx, nil
}

// RevertTransaction undoes an active transaction: the exact inverse delta is
// applied, a DELETE audit entry is appended and the transaction leaves the
// active set. Reverting an unknown id is a no-op and returns false. actorID
// defaults to the original contributor and details to "Deleted transaction: {id}".
func (l *Ledger) RevertTransaction(transactionID, actorID, details string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.revert(transactionID, actorID, details, "manual")
	if !ok {
		return false
	}
	l.emit(Change{
		Entity:  "transaction",
		Action:  "reverted",
		IDs:     []string{transactionID},
		AdminID: entry.AdminID,
		Data: model.StoreData{
			Members:      slices.Clone(l.data.Members),
			Transactions: slices.Clone(l.data.Transactions),
			AuditLogs:    slices.Clone(l.data.AuditLogs),
		},
	})
	return true
}

// revert must be called with l.mu held.
func (l *Ledger) revert(transactionID, actorID, details, cause string) (model.AuditLog, bool) {
	ti := indexOf(l.data.Transactions, func(t model.Transaction) bool { return t.ID == transactionID })
	if ti < 0 {
		return model.AuditLog{}, false
	}
	tx := l.data.Transactions[ti]

	if actorID == "" {
		actorID = tx.ContributorID
	}
	if details == "" {
		details = "Deleted transaction: " + tx.ID
	}

	// Reversal entries are filed under the opposite scope so every
	// balance reduction sorts with other reductions.
	scope := ids.Achievement
	if tx.PointsSnapshot > 0 {
		scope = ids.Violation
	}

	now := l.timestamp()
	entry := model.AuditLog{
		ID:            ids.Generate(ids.AuditLog, scope, now, idsOf(l.data.AuditLogs, auditLogID)),
		Timestamp:     now,
		Action:        model.AuditDelete,
		MemberID:      tx.MemberID,
		ContributorID: actorID,
		Details:       details,
		Points:        -tx.PointsSnapshot,
		AdminID:       tx.AdminID,
		Evidence:      tx.Evidence,
	}

	if !l.applyDelta(tx.MemberID, -tx.PointsSnapshot) {
		l.logger.Warn("reverted transaction of deleted member", "transaction", tx.ID, "member", tx.MemberID)
	}
	l.data.AuditLogs = prepend(l.data.AuditLogs, entry)
	l.data.Transactions = slices.Delete(slices.Clone(l.data.Transactions), ti, ti+1)

	metrics.TransactionsReverted.WithLabelValues(cause).Inc()
	return entry, true
}
