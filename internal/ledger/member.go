package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/model"
)

func (l *Ledger) Member(id string) (model.Member, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == id })
	if i < 0 {
		return model.Member{}, false
	}
	return l.data.Members[i], true
}

// Members returns the tenant's members, most recently added first.
func (l *Ledger) Members(adminID string) []model.Member {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter(l.data.Members, func(m model.Member) bool { return m.AdminID == adminID })
}

// Leaderboard returns the tenant's members ordered by balance, highest first.
func (l *Ledger) Leaderboard(adminID string) []model.Member {
	members := l.Members(adminID)
	slices.SortStableFunc(members, func(a, b model.Member) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return members
}

func checkMemberInput(in model.MemberInput) (model.MemberInput, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Division = strings.TrimSpace(in.Division)
	if in.Name == "" {
		return in, fmt.Errorf("%w: member name is required", ErrInvalidArgument)
	}
	if in.Division == "" {
		return in, fmt.Errorf("%w: member division is required", ErrInvalidArgument)
	}
	return in, nil
}

// AddMember creates a member with a zero balance and then seeds any initial
// points through the balance primitive. Seeding writes no audit entry.
func (l *Ledger) AddMember(adminID string, in model.MemberInput) (model.Member, error) {
	added, err := l.AddMembers(adminID, []model.MemberInput{in})
	if err != nil {
		return model.Member{}, err
	}
	return added[0], nil
}

// AddMembers imports a batch. Supplied ids are kept when free; colliding or
// missing ids are generated. Nothing is added if any input is invalid.
func (l *Ledger) AddMembers(adminID string, inputs []model.MemberInput) ([]model.Member, error) {
	if adminID == "" {
		return nil, fmt.Errorf("%w: admin id is required", ErrInvalidArgument)
	}
	checked := make([]model.MemberInput, len(inputs))
	for i, in := range inputs {
		c, err := checkMemberInput(in)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		checked[i] = c
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timestamp()
	taken := ids.NewSet(idsOf(l.data.Members, memberID))
	added := make([]model.Member, 0, len(checked))
	for _, in := range checked {
		added = append(added, model.Member{
			ID:       taken.Unique(in.ID, ids.Member, "", now),
			Name:     in.Name,
			Division: in.Division,
			AdminID:  adminID,
		})
	}
	for i := range added {
		l.data.Members = prepend(l.data.Members, added[i])
	}
	for i, in := range checked {
		if in.InitialPoints != 0 {
			l.applyDelta(added[i].ID, in.InitialPoints)
			added[i].TotalPoints = in.InitialPoints
		}
	}

	l.emit(Change{
		Entity:  "member",
		Action:  "created",
		IDs:     idsOf(added, memberID),
		AdminID: adminID,
		Data:    model.StoreData{Members: slices.Clone(l.data.Members)},
	})
	return added, nil
}

// UpdateMembers applies the patch to every listed member that exists and
// returns how many were changed. Balances are never touched here.
func (l *Ledger) UpdateMembers(memberIDs []string, patch model.MemberPatch) (int, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return 0, fmt.Errorf("%w: member name cannot be empty", ErrInvalidArgument)
	}
	if patch.Division != nil && strings.TrimSpace(*patch.Division) == "" {
		return 0, fmt.Errorf("%w: member division cannot be empty", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	want := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		want[id] = true
	}
	var changed []string
	var owner string
	for i := range l.data.Members {
		m := &l.data.Members[i]
		if !want[m.ID] {
			continue
		}
		owner = m.AdminID
		if patch.Name != nil {
			m.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Division != nil {
			m.Division = strings.TrimSpace(*patch.Division)
		}
		changed = append(changed, m.ID)
	}
	if len(changed) == 0 {
		return 0, nil
	}

	l.emit(Change{
		Entity:  "member",
		Action:  "updated",
		IDs:     changed,
		AdminID: owner,
		Data:    model.StoreData{Members: slices.Clone(l.data.Members)},
	})
	return len(changed), nil
}

// DeleteMember removes a member. Its transactions and audit history stay.
func (l *Ledger) DeleteMember(id string) bool {
	return l.DeleteMembers([]string{id}) == 1
}

// DeleteMembers removes the listed members and returns how many existed.
func (l *Ledger) DeleteMembers(memberIDs []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		drop[id] = true
	}
	var removed []string
	var owner string
	kept := l.data.Members[:0:0]
	for _, m := range l.data.Members {
		if drop[m.ID] {
			removed = append(removed, m.ID)
			owner = m.AdminID
			continue
		}
		kept = append(kept, m)
	}
	if len(removed) == 0 {
		return 0
	}
	l.data.Members = kept

	l.emit(Change{
		Entity:  "member",
		Action:  "deleted",
		IDs:     removed,
		AdminID: owner,
		Data:    model.StoreData{Members: slices.Clone(l.data.Members)},
	})
	return len(removed)
}

// UpdateMemberPoints is the balance primitive. Every point change funnels
// through it; callers must invoke it once per logical event.
func (l *Ledger) UpdateMemberPoints(id string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.applyDelta(id, delta) {
		return fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	i := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == id })
	l.emit(Change{
		Entity:  "member",
		Action:  "points_updated",
		IDs:     []string{id},
		AdminID: l.data.Members[i].AdminID,
		Data:    model.StoreData{Members: slices.Clone(l.data.Members)},
	})
	return nil
}

// applyDelta must be called with l.mu held.
func (l *Ledger) applyDelta(id string, delta int) bool {
	i := indexOf(l.data.Members, func(m model.Member) bool { return m.ID == id })
	if i < 0 {
		return false
	}
	l.data.Members[i].TotalPoints += delta
	return true
}
