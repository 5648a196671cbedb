package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/validate"
)

// RuleInput describes a catalog rule. Type may be empty, in which case it is
// derived from the sign of Points.
type RuleInput struct {
	Description string         `json:"description"`
	Type        model.RuleType `json:"type"`
	Points      int            `json:"points"`
}

func checkRuleInput(in RuleInput) (RuleInput, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return in, fmt.Errorf("%w: rule description is required", ErrInvalidArgument)
	}
	want := model.RuleTypeFor(in.Points)
	if in.Type == "" {
		in.Type = want
	}
	if !in.Type.Valid() {
		return in, fmt.Errorf("%w: unknown rule type %q", ErrInvalidArgument, in.Type)
	}
	if in.Type != want {
		return in, fmt.Errorf("%w: a rule worth %d points must be %s", ErrInvalidArgument, in.Points, want)
	}
	return in, nil
}

func ruleScope(t model.RuleType) string {
	if t == model.RuleAchievement {
		return ids.Achievement
	}
	return ids.Violation
}

func (l *Ledger) Rule(id string) (model.Rule, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rule(id)
}

// rule must be called with l.mu held.
func (l *Ledger) rule(id string) (model.Rule, bool) {
	i := indexOf(l.data.Rules, func(r model.Rule) bool { return r.ID == id })
	if i < 0 {
		return model.Rule{}, false
	}
	return l.data.Rules[i], true
}

func (l *Ledger) Rules(adminID string) []model.Rule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Rules, func(r model.Rule) bool { return r.AdminID == adminID })
}

func (l *Ledger) AddRule(adminID string, in RuleInput) (model.Rule, error) {
	added, err := l.AddRules(adminID, []RuleInput{in})
	if err != nil {
		return model.Rule{}, err
	}
	return added[0], nil
}

// AddRules adds a batch of rules; an invalid input rejects the whole batch.
func (l *Ledger) AddRules(adminID string, inputs []RuleInput) ([]model.Rule, error) {
	if adminID == "" {
		return nil, fmt.Errorf("%w: admin id is required", ErrInvalidArgument)
	}
	checked := make([]RuleInput, len(inputs))
	for i, in := range inputs {
		c, err := checkRuleInput(in)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		checked[i] = c
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timestamp()
	taken := ids.NewSet(idsOf(l.data.Rules, ruleID))
	added := make([]model.Rule, 0, len(checked))
	for _, in := range checked {
		r := model.Rule{
			ID:          taken.Unique("", ids.Rule, ruleScope(in.Type), now),
			Description: in.Description,
			Type:        in.Type,
			Points:      in.Points,
			AdminID:     adminID,
		}
		added = append(added, r)
		l.data.Rules = prepend(l.data.Rules, r)
	}

	l.emit(Change{
		Entity:  "rule",
		Action:  "created",
		IDs:     idsOf(added, ruleID),
		AdminID: adminID,
		Data:    model.StoreData{Rules: slices.Clone(l.data.Rules)},
	})
	return added, nil
}

// DeleteRule removes a rule from the catalog. Transactions that applied it
// keep their snapshot and remain revertible.
func (l *Ledger) DeleteRule(id string) bool {
	return l.DeleteRules([]string{id}) == 1
}

func (l *Ledger) DeleteRules(ruleIDs []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		drop[id] = true
	}
	var removed []string
	var owner string
	kept := l.data.Rules[:0:0]
	for _, r := range l.data.Rules {
		if drop[r.ID] {
			removed = append(removed, r.ID)
			owner = r.AdminID
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return 0
	}
	l.data.Rules = kept

	l.emit(Change{
		Entity:  "rule",
		Action:  "deleted",
		IDs:     removed,
		AdminID: owner,
		Data:    model.StoreData{Rules: slices.Clone(l.data.Rules)},
	})
	return len(removed)
}

// WarningRuleInput describes a warning threshold.
type WarningRuleInput struct {
	Name            string `json:"name"`
	Threshold       int    `json:"threshold"`
	Message         string `json:"message"`
	Action          string `json:"action"`
	TextColor       string `json:"textColor"`
	BackgroundColor string `json:"backgroundColor"`
}

func (l *Ledger) WarningRules(adminID string) []model.WarningRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.WarningRules, func(w model.WarningRule) bool { return w.AdminID == adminID })
}

func (l *Ledger) WarningRule(id string) (model.WarningRule, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := indexOf(l.data.WarningRules, func(w model.WarningRule) bool { return w.ID == id })
	if i < 0 {
		return model.WarningRule{}, false
	}
	return l.data.WarningRules[i], true
}

func (l *Ledger) AddWarningRule(adminID string, in WarningRuleInput) (model.WarningRule, error) {
	w := model.WarningRule{
		Name:            strings.TrimSpace(in.Name),
		Threshold:       in.Threshold,
		Message:         strings.TrimSpace(in.Message),
		Action:          strings.TrimSpace(in.Action),
		TextColor:       strings.TrimSpace(in.TextColor),
		BackgroundColor: strings.TrimSpace(in.BackgroundColor),
		AdminID:         adminID,
	}
	switch {
	case adminID == "":
		return model.WarningRule{}, fmt.Errorf("%w: admin id is required", ErrInvalidArgument)
	case w.Name == "" || w.Message == "" || w.Action == "":
		return model.WarningRule{}, fmt.Errorf("%w: warning rule name, message and action are required", ErrInvalidArgument)
	case !validate.HexColor(w.TextColor) || !validate.HexColor(w.BackgroundColor):
		return model.WarningRule{}, fmt.Errorf("%w: warning colors must be #RGB or #RRGGBB", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w.ID = ids.Generate(ids.WarningRule, "", l.timestamp(), idsOf(l.data.WarningRules, warningRuleID))
	l.data.WarningRules = prepend(l.data.WarningRules, w)

	l.emit(Change{
		Entity:  "warning_rule",
		Action:  "created",
		IDs:     []string{w.ID},
		AdminID: adminID,
		Data:    model.StoreData{WarningRules: slices.Clone(l.data.WarningRules)},
	})
	return w, nil
}

func (l *Ledger) DeleteWarningRule(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.data.WarningRules, func(w model.WarningRule) bool { return w.ID == id })
	if i < 0 {
		return false
	}
	owner := l.data.WarningRules[i].AdminID
	l.data.WarningRules = slices.Delete(slices.Clone(l.data.WarningRules), i, i+1)

	l.emit(Change{
		Entity:  "warning_rule",
		Action:  "deleted",
		IDs:     []string{id},
		AdminID: owner,
		Data:    model.StoreData{WarningRules: slices.Clone(l.data.WarningRules)},
	})
	return true
}

// Warnings evaluates the tenant's warning rules against live balances. A
// member appears once per rule it triggers, lowest threshold first.
func (l *Ledger) Warnings(adminID string) []model.Warning {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rules := filter(l.data.WarningRules, func(w model.WarningRule) bool { return w.AdminID == adminID })
	slices.SortStableFunc(rules, func(a, b model.WarningRule) int { return cmp.Compare(a.Threshold, b.Threshold) })

	out := []model.Warning{}
	for _, w := range rules {
		for _, m := range l.data.Members {
			if m.AdminID == adminID && w.Triggered(m.TotalPoints) {
				out = append(out, model.Warning{Member: m, Rule: w})
			}
		}
	}
	return out
}

// ConfirmWarning records that a contributor acted on a warning. The entry is
// a zero-point annotation and leaves the balance alone.
func (l *Ledger) ConfirmWarning(memberID, warningRuleID, contributorID, note string) (model.AuditLog, error) {
	if contributorID == "" {
		return model.AuditLog{}, fmt.Errorf("%w: contributor id is required", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mi := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == memberID })
	if mi < 0 {
		return model.AuditLog{}, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	wi := indexOf(l.data.WarningRules, func(w model.WarningRule) bool { return w.ID == warningRuleID })
	if wi < 0 {
		return model.AuditLog{}, fmt.Errorf("warning rule %s: %w", warningRuleID, ErrNotFound)
	}

	details := "Warning confirmed: " + l.data.WarningRules[wi].Name
	if note = strings.TrimSpace(note); note != "" {
		details += " (" + note + ")"
	}
	m := l.data.Members[mi]
	entry := l.annotate(m.ID, m.AdminID, contributorID, details)

	l.emit(Change{
		Entity:  "audit_log",
		Action:  "created",
		IDs:     []string{entry.ID},
		AdminID: entry.AdminID,
		Data:    model.StoreData{AuditLogs: slices.Clone(l.data.AuditLogs)},
	})
	return entry, nil
}

// annotate prepends a zero-point UPDATE entry. Must be called with l.mu held.
func (l *Ledger) annotate(memberID, adminID, contributorID, details string) model.AuditLog {
	now := l.timestamp()
	entry := model.AuditLog{
		ID:            ids.Generate(ids.AuditLog, ids.Update, now, idsOf(l.data.AuditLogs, auditLogID)),
		Timestamp:     now,
		Action:        model.AuditUpdate,
		MemberID:      memberID,
		ContributorID: contributorID,
		Details:       details,
		AdminID:       adminID,
	}
	l.data.AuditLogs = prepend(l.data.AuditLogs, entry)
	return entry
}
