package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
)

func (l *Ledger) Archive(id string) (model.Archive, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := indexOf(l.data.Archives, func(a model.Archive) bool { return a.ID == id })
	if i < 0 {
		return model.Archive{}, false
	}
	return l.data.Archives[i], true
}

// Archives returns the tenant's archives, newest first.
func (l *Ledger) Archives(adminID string) []model.Archive {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Archives, func(a model.Archive) bool { return a.AdminID == adminID })
}

// CreateArchive freezes the tenant's current roster. With includeHistory each
// snapshot also carries the member's audit trail as of now. Members and
// transactions are not modified.
func (l *Ledger) CreateArchive(adminID, title string, includeHistory bool) (model.Archive, error) {
	title = strings.TrimSpace(title)
	if adminID == "" {
		return model.Archive{}, fmt.Errorf("%w: admin id is required", ErrInvalidArgument)
	}
	if title == "" {
		return model.Archive{}, fmt.Errorf("%w: archive title is required", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snapshots := []model.ArchiveMember{}
	for _, m := range l.data.Members {
		if m.AdminID != adminID {
			continue
		}
		s := model.ArchiveMember{
			ID:       m.ID,
			Name:     m.Name,
			Division: m.Division,
			Points:   m.TotalPoints,
		}
		if includeHistory {
			s.History = filter(l.data.AuditLogs, func(a model.AuditLog) bool { return a.MemberID == m.ID })
		}
		snapshots = append(snapshots, s)
	}

	now := l.timestamp()
	a := model.Archive{
		ID:              ids.Generate(ids.Archive, "", now, idsOf(l.data.Archives, archiveID)),
		Title:           title,
		Timestamp:       now,
		MemberSnapshots: snapshots,
		AdminID:         adminID,
	}
	l.data.Archives = prepend(l.data.Archives, a)

	metrics.ArchivesCreated.Inc()
	l.emit(Change{
		Entity:  "archive",
		Action:  "created",
		IDs:     []string{a.ID},
		AdminID: adminID,
		Data:    model.StoreData{Archives: slices.Clone(l.data.Archives)},
	})
	return a, nil
}

// DeleteArchive removes an archive. Nothing else refers to archives.
func (l *Ledger) DeleteArchive(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.data.Archives, func(a model.Archive) bool { return a.ID == id })
	if i < 0 {
		return false
	}
	adminID := l.data.Archives[i].AdminID
	l.data.Archives = slices.Delete(slices.Clone(l.data.Archives), i, i+1)

	l.emit(Change{
		Entity:  "archive",
		Action:  "deleted",
		IDs:     []string{id},
		AdminID: adminID,
		Data:    model.StoreData{Archives: slices.Clone(l.data.Archives)},
	})
	return true
}
