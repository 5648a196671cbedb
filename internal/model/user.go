package model

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleContributor Role = "CONTRIBUTOR"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleContributor
}

// User is an administrator or contributor. AdminID is the user's own id for
// admins and the owning admin's id for contributors; it scopes every other entity.
type User struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Username         string `json:"username" validate:"required,username"`
	Password         string `json:"password,omitempty"`
	Role             Role   `json:"role" validate:"required,oneof=ADMIN CONTRIBUTOR"`
	AdminID          string `json:"adminId" validate:"required"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	BiometricEnabled bool   `json:"biometricEnabled,omitempty"`
	BiometricID      string `json:"biometricId,omitempty"`
}

// Public returns a copy without the password hash.
func (u User) Public() User {
	u.Password = ""
	return u
}

// UserPatch holds the editable user fields. Nil fields are left alone.
type UserPatch struct {
	Name             *string `json:"name,omitempty"`
	Username         *string `json:"username,omitempty"`
	Password         *string `json:"password,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	BiometricEnabled *bool   `json:"biometricEnabled,omitempty"`
	BiometricID      *string `json:"biometricId,omitempty"`
}
