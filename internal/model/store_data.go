package model

// StoreData is the full persisted dataset. In a partial save a nil collection
// means "leave unchanged", while an empty non-nil slice clears it.
type StoreData struct {
	Members      []Member      `json:"members"`
	Rules        []Rule        `json:"rules"`
	WarningRules []WarningRule `json:"warningRules"`
	Transactions []Transaction `json:"transactions"`
	AuditLogs    []AuditLog    `json:"auditLogs"`
	Archives     []Archive     `json:"archives"`
	Users        []User        `json:"users"`
	Appeals      []Appeal      `json:"appeals"`
}

// DefaultStoreData returns an empty dataset with every collection non-nil.
func DefaultStoreData() StoreData {
	return StoreData{
		Members:      []Member{},
		Rules:        []Rule{},
		WarningRules: []WarningRule{},
		Transactions: []Transaction{},
		AuditLogs:    []AuditLog{},
		Archives:     []Archive{},
		Users:        []User{},
		Appeals:      []Appeal{},
	}
}

// Merge overlays the non-nil collections of partial onto d.
func (d StoreData) Merge(partial StoreData) StoreData {
	if partial.Members != nil {
		d.Members = partial.Members
	}
	if partial.Rules != nil {
		d.Rules = partial.Rules
	}
	if partial.WarningRules != nil {
		d.WarningRules = partial.WarningRules
	}
	if partial.Transactions != nil {
		d.Transactions = partial.Transactions
	}
	if partial.AuditLogs != nil {
		d.AuditLogs = partial.AuditLogs
	}
	if partial.Archives != nil {
		d.Archives = partial.Archives
	}
	if partial.Users != nil {
		d.Users = partial.Users
	}
	if partial.Appeals != nil {
		d.Appeals = partial.Appeals
	}
	return d
}

// Normalize replaces nil collections with empty ones.
func (d StoreData) Normalize() StoreData {
	return DefaultStoreData().Merge(d)
}
