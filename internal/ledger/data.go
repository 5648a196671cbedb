package ledger

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/validate"
)

// Snapshot returns every collection restricted to one tenant. Password
// hashes are stripped.
func (l *Ledger) Snapshot(adminID string) model.StoreData {
	l.mu.RLock()
	defer l.mu.RUnlock()

	users := filter(l.data.Users, func(u model.User) bool { return u.AdminID == adminID })
	for i := range users {
		users[i] = users[i].Public()
	}
	return model.StoreData{
		Members:      filter(l.data.Members, func(m model.Member) bool { return m.AdminID == adminID }),
		Rules:        filter(l.data.Rules, func(r model.Rule) bool { return r.AdminID == adminID }),
		WarningRules: filter(l.data.WarningRules, func(w model.WarningRule) bool { return w.AdminID == adminID }),
		Transactions: filter(l.data.Transactions, func(t model.Transaction) bool { return t.AdminID == adminID }),
		AuditLogs:    filter(l.data.AuditLogs, func(a model.AuditLog) bool { return a.AdminID == adminID }),
		Archives:     filter(l.data.Archives, func(a model.Archive) bool { return a.AdminID == adminID }),
		Users:        users,
		Appeals:      filter(l.data.Appeals, func(a model.Appeal) bool { return a.AdminID == adminID }),
	}
}

// Import replaces the tenant's records in every non-nil collection of
// partial and leaves other tenants' records alone. The whole import is
// validated first; one bad record rejects it. Users without a password keep
// their stored hash and plain-text passwords are hashed.
func (l *Ledger) Import(adminID string, partial model.StoreData) (model.StoreData, error) {
	if adminID == "" {
		return model.StoreData{}, fmt.Errorf("%w: admin id is required", ErrInvalidArgument)
	}
	if err := validate.StoreData(partial); err != nil {
		return model.StoreData{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	users := slices.Clone(partial.Users)
	if users != nil {
		if i := indexOf(users, func(u model.User) bool { return u.ID == adminID }); i < 0 || users[i].Role != model.RoleAdmin {
			return model.StoreData{}, fmt.Errorf("%w: users must include the tenant admin %s", ErrInvalidArgument, adminID)
		}
	}
	for i, u := range users {
		if u.Password == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(u.Password)); err == nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), l.passwordCost)
		if err != nil {
			return model.StoreData{}, fmt.Errorf("hash password: %w", err)
		}
		users[i].Password = string(hash)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if users != nil {
		for i, u := range users {
			if u.Password != "" {
				continue
			}
			existing, ok := l.user(func(o model.User) bool { return o.ID == u.ID })
			if !ok {
				return model.StoreData{}, fmt.Errorf("%w: users[%d] (id %s): password is required for new users", ErrInvalidArgument, i, u.ID)
			}
			users[i].Password = existing.Password
		}
		if err := uniqueUsernames(adminID, users, l.data.Users); err != nil {
			return model.StoreData{}, err
		}
	}

	var next model.StoreData
	var err error
	if next.Members, err = replaceTenant("members", adminID, l.data.Members, partial.Members, memberID, func(m model.Member) string { return m.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.Rules, err = replaceTenant("rules", adminID, l.data.Rules, partial.Rules, ruleID, func(r model.Rule) string { return r.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.WarningRules, err = replaceTenant("warningRules", adminID, l.data.WarningRules, partial.WarningRules, warningRuleID, func(w model.WarningRule) string { return w.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.Transactions, err = replaceTenant("transactions", adminID, l.data.Transactions, partial.Transactions, transactionID, func(t model.Transaction) string { return t.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.AuditLogs, err = replaceTenant("auditLogs", adminID, l.data.AuditLogs, partial.AuditLogs, auditLogID, func(a model.AuditLog) string { return a.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.Archives, err = replaceTenant("archives", adminID, l.data.Archives, partial.Archives, archiveID, func(a model.Archive) string { return a.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.Users, err = replaceTenant("users", adminID, l.data.Users, users, userID, func(u model.User) string { return u.AdminID }); err != nil {
		return model.StoreData{}, err
	}
	if next.Appeals, err = replaceTenant("appeals", adminID, l.data.Appeals, partial.Appeals, appealID, func(a model.Appeal) string { return a.AdminID }); err != nil {
		return model.StoreData{}, err
	}

	l.data = l.data.Merge(next)
	changed := cloneData(next)

	l.logger.Info("imported tenant data", "admin_id", adminID,
		"members", len(partial.Members), "transactions", len(partial.Transactions), "audit_logs", len(partial.AuditLogs))
	l.emit(Change{
		Entity:  "data",
		Action:  "imported",
		AdminID: adminID,
		Data:    changed,
	})
	return changed, nil
}

// replaceTenant returns current with adminID's records swapped for imported.
// A nil imported slice means the collection was not submitted.
func replaceTenant[T any](collection, adminID string, current, imported []T, id, owner func(T) string) ([]T, error) {
	if imported == nil {
		return nil, nil
	}
	others := filter(current, func(item T) bool { return owner(item) != adminID })
	foreign := make(map[string]bool, len(others))
	for _, item := range others {
		foreign[id(item)] = true
	}
	seen := make(map[string]bool, len(imported))
	for i, item := range imported {
		if owner(item) != adminID {
			return nil, fmt.Errorf("%w: %s[%d] (id %s) belongs to another tenant", ErrInvalidArgument, collection, i, id(item))
		}
		if foreign[id(item)] || seen[id(item)] {
			return nil, fmt.Errorf("%s[%d] (id %s): duplicate id: %w", collection, i, id(item), ErrConflict)
		}
		seen[id(item)] = true
	}
	return append(slices.Clone(imported), others...), nil
}

func uniqueUsernames(adminID string, imported, current []model.User) error {
	taken := make(map[string]bool, len(current)+len(imported))
	for _, u := range current {
		if u.AdminID != adminID {
			taken[u.Username] = true
		}
	}
	for i, u := range imported {
		if taken[u.Username] {
			return fmt.Errorf("users[%d]: username %q: %w", i, u.Username, ErrConflict)
		}
		taken[u.Username] = true
	}
	return nil
}
