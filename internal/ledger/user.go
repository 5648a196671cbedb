package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/pointkeeper/internal/ids"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/validate"
)

// UserInput registers an account. AdminID is ignored for admins, who own
// their own tenant, and must name an existing admin for contributors.
type UserInput struct {
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	AdminID  string     `json:"adminId,omitempty"`
	Email    string     `json:"email,omitempty"`
	Phone    string     `json:"phone,omitempty"`
}

func userScope(r model.Role) string {
	if r == model.RoleAdmin {
		return ids.Admin
	}
	return ids.Contributor
}

func (l *Ledger) User(id string) (model.User, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.user(func(u model.User) bool { return u.ID == id })
}

func (l *Ledger) UserByUsername(username string) (model.User, bool) {
	username = strings.ToLower(strings.TrimSpace(username))
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.user(func(u model.User) bool { return u.Username == username })
}

// user must be called with l.mu held.
func (l *Ledger) user(match func(model.User) bool) (model.User, bool) {
	i := indexOf(l.data.Users, match)
	if i < 0 {
		return model.User{}, false
	}
	return l.data.Users[i], true
}

// Users returns the tenant's accounts without password hashes.
func (l *Ledger) Users(adminID string) []model.User {
	l.mu.RLock()
	defer l.mu.RUnlock()
	users := filter(l.data.Users, func(u model.User) bool { return u.AdminID == adminID })
	for i := range users {
		users[i] = users[i].Public()
	}
	return users
}

func (l *Ledger) RegisterUser(in UserInput) (model.User, error) {
	added, err := l.RegisterUsers([]UserInput{in})
	if err != nil {
		return model.User{}, err
	}
	return added[0], nil
}

// RegisterUsers creates a batch of accounts. Usernames are unique across all
// tenants. Passwords are stored as bcrypt hashes; the returned users omit them.
func (l *Ledger) RegisterUsers(inputs []UserInput) ([]model.User, error) {
	if len(inputs) == 0 {
		return []model.User{}, nil
	}
	checked := make([]UserInput, len(inputs))
	hashes := make([]string, len(inputs))
	for i, in := range inputs {
		in.Name = strings.TrimSpace(in.Name)
		in.Username = strings.ToLower(strings.TrimSpace(in.Username))
		switch {
		case in.Name == "":
			return nil, fmt.Errorf("user %d: %w: name is required", i, ErrInvalidArgument)
		case !validate.Username(in.Username):
			return nil, fmt.Errorf("user %d: %w: username must be 3-20 lowercase letters, digits or underscores", i, ErrInvalidArgument)
		case in.Password == "":
			return nil, fmt.Errorf("user %d: %w: password is required", i, ErrInvalidArgument)
		case !in.Role.Valid():
			return nil, fmt.Errorf("user %d: %w: unknown role %q", i, ErrInvalidArgument, in.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), l.passwordCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		checked[i] = in
		hashes[i] = string(hash)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	usernames := make(map[string]bool, len(l.data.Users)+len(checked))
	for _, u := range l.data.Users {
		usernames[u.Username] = true
	}
	for i, in := range checked {
		if usernames[in.Username] {
			return nil, fmt.Errorf("user %d: username %q: %w", i, in.Username, ErrConflict)
		}
		usernames[in.Username] = true
		if in.Role == model.RoleContributor {
			if _, ok := l.user(func(u model.User) bool { return u.ID == in.AdminID && u.Role == model.RoleAdmin }); !ok {
				return nil, fmt.Errorf("user %d: admin %s: %w", i, in.AdminID, ErrNotFound)
			}
		}
	}

	now := l.timestamp()
	taken := ids.NewSet(idsOf(l.data.Users, userID))
	added := make([]model.User, 0, len(checked))
	for i, in := range checked {
		u := model.User{
			ID:       taken.Unique("", ids.User, userScope(in.Role), now),
			Name:     in.Name,
			Username: in.Username,
			Password: hashes[i],
			Role:     in.Role,
			AdminID:  in.AdminID,
			Email:    strings.TrimSpace(in.Email),
			Phone:    strings.TrimSpace(in.Phone),
		}
		if u.Role == model.RoleAdmin {
			u.AdminID = u.ID
		}
		l.data.Users = prepend(l.data.Users, u)
		added = append(added, u.Public())
	}

	l.emit(Change{
		Entity:  "user",
		Action:  "created",
		IDs:     idsOf(added, userID),
		AdminID: added[0].AdminID,
		Data:    model.StoreData{Users: slices.Clone(l.data.Users)},
	})
	return added, nil
}

// UpdateUser applies patch to one account and returns the updated user.
func (l *Ledger) UpdateUser(id string, patch model.UserPatch) (model.User, error) {
	var hash string
	if patch.Password != nil {
		if *patch.Password == "" {
			return model.User{}, fmt.Errorf("%w: password cannot be empty", ErrInvalidArgument)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), l.passwordCost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(h)
	}
	var username string
	if patch.Username != nil {
		username = strings.ToLower(strings.TrimSpace(*patch.Username))
		if !validate.Username(username) {
			return model.User{}, fmt.Errorf("%w: username must be 3-20 lowercase letters, digits or underscores", ErrInvalidArgument)
		}
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.User{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.data.Users, func(u model.User) bool { return u.ID == id })
	if i < 0 {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if username != "" {
		if _, taken := l.user(func(u model.User) bool { return u.Username == username && u.ID != id }); taken {
			return model.User{}, fmt.Errorf("username %q: %w", username, ErrConflict)
		}
	}

	u := l.data.Users[i]
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if username != "" {
		u.Username = username
	}
	if hash != "" {
		u.Password = hash
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		u.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.BiometricEnabled != nil {
		u.BiometricEnabled = *patch.BiometricEnabled
	}
	if patch.BiometricID != nil {
		u.BiometricID = *patch.BiometricID
	}
	l.data.Users[i] = u

	l.emit(Change{
		Entity:  "user",
		Action:  "updated",
		IDs:     []string{id},
		AdminID: u.AdminID,
		Data:    model.StoreData{Users: slices.Clone(l.data.Users)},
	})
	return u.Public(), nil
}

// DeleteUser removes an account. An admin that still owns contributors
// cannot be removed.
func (l *Ledger) DeleteUser(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.data.Users, func(u model.User) bool { return u.ID == id })
	if i < 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u := l.data.Users[i]
	if u.Role == model.RoleAdmin {
		if _, owns := l.user(func(o model.User) bool { return o.AdminID == u.ID && o.ID != u.ID }); owns {
			return fmt.Errorf("admin %s still owns contributors: %w", u.ID, ErrConflict)
		}
	}
	l.data.Users = slices.Delete(slices.Clone(l.data.Users), i, i+1)

	l.emit(Change{
		Entity:  "user",
		Action:  "deleted",
		IDs:     []string{id},
		AdminID: u.AdminID,
		Data:    model.StoreData{Users: slices.Clone(l.data.Users)},
	})
	return nil
}

// Authenticate checks a username and password and returns the account
// without its hash.
func (l *Ledger) Authenticate(username, password string) (model.User, error) {
	u, ok := l.UserByUsername(username)
	if !ok {
		return model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			l.logger.Warn("unusable password hash", "user_id", u.ID, "error", err)
		}
		return model.User{}, ErrInvalidCredentials
	}
	return u.Public(), nil
}
