package ledger

import (
	"strings"

	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// LookupMemberPublic finds a member by id and division. An exact match on
// both wins over a case-insensitive one, so ids differing only by case
// resolve to the member typed. A partial match reveals nothing.
func (l *Ledger) LookupMemberPublic(memberID, division string) (model.Member, bool) {
	memberID = strings.TrimSpace(memberID)
	division = strings.TrimSpace(division)
	if memberID == "" || division == "" {
		metrics.PublicLookups.WithLabelValues("miss").Inc()
		return model.Member{}, false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	i := indexOf(l.data.Members, func(m model.Member) bool {
		return m.ID == memberID && m.Division == division
	})
	if i < 0 {
		i = indexOf(l.data.Members, func(m model.Member) bool {
			return strings.EqualFold(m.ID, memberID) && strings.EqualFold(m.Division, division)
		})
	}
	if i < 0 {
		metrics.PublicLookups.WithLabelValues("miss").Inc()
		return model.Member{}, false
	}
	metrics.PublicLookups.WithLabelValues("hit").Inc()
	return l.data.Members[i], true
}

// LookupLogsPublic returns the audit trail of a member resolved by
// LookupMemberPublic.
func (l *Ledger) LookupLogsPublic(memberID string) []model.AuditLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.AuditLogs, func(a model.AuditLog) bool { return a.MemberID == memberID })
}

func (l *Ledger) LookupAppealsPublic(memberID string) []model.Appeal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Appeals, func(a model.Appeal) bool { return a.MemberID == memberID })
}

func (l *Ledger) LookupRulesPublic(adminID string) []model.Rule {
	return l.Rules(adminID)
}
