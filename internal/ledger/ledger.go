// Package ledger owns every collection of the points system and is the only
// writer. Mutations are serialized and atomic: each one either updates every
// collection it touches or none of them. Lists are kept most-recent-first.
package ledger

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/pointkeeper/internal/model"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidDecision    = errors.New("invalid appeal decision")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Change describes one committed mutation. Data holds full copies of the
// collections that were touched; untouched collections are nil.
type Change struct {
	Entity  string
	Action  string
	IDs     []string
	AdminID string
	Data    model.StoreData
}

// Observer is told about every committed change, in commit order. It runs
// while the ledger is locked, so it must not block or call back into the ledger.
type Observer func(Change)

type Option func(*Ledger)

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithObserver registers a change observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

// WithPasswordCost sets the bcrypt cost for user passwords.
func WithPasswordCost(cost int) Option {
	return func(l *Ledger) { l.passwordCost = cost }
}

type Ledger struct {
	mu   sync.RWMutex
	data model.StoreData

	now          func() time.Time
	logger       *slog.Logger
	observers    []Observer
	passwordCost int
}

// New builds a ledger over a previously loaded dataset.
func New(data model.StoreData, opts ...Option) *Ledger {
	l := &Ledger{
		data:         cloneData(data.Normalize()),
		now:          time.Now,
		logger:       slog.Default(),
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddObserver registers o for subsequent changes.
func (l *Ledger) AddObserver(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// Data returns a copy of the whole dataset.
func (l *Ledger) Data() model.StoreData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneData(l.data)
}

// emit must be called with l.mu held.
func (l *Ledger) emit(c Change) {
	for _, o := range l.observers {
		o(c)
	}
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC()
}

func cloneData(d model.StoreData) model.StoreData {
	return model.StoreData{
		Members:      slices.Clone(d.Members),
		Rules:        slices.Clone(d.Rules),
		WarningRules: slices.Clone(d.WarningRules),
		Transactions: slices.Clone(d.Transactions),
		AuditLogs:    slices.Clone(d.AuditLogs),
		Archives:     slices.Clone(d.Archives),
		Users:        slices.Clone(d.Users),
		Appeals:      slices.Clone(d.Appeals),
	}
}

func prepend[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func idsOf[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := []T{}
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func indexOf[T any](items []T, match func(T) bool) int {
	return slices.IndexFunc(items, match)
}

func memberID(m model.Member) string           { return m.ID }
func ruleID(r model.Rule) string               { return r.ID }
func warningRuleID(w model.WarningRule) string { return w.ID }
func transactionID(t model.Transaction) string { return t.ID }
func auditLogID(a model.AuditLog) string       { return a.ID }
func archiveID(a model.Archive) string         { return a.ID }
func userID(u model.User) string               { return u.ID }
func appealID(a model.Appeal) string           { return a.ID }
