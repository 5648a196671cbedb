package model

// Member is a tracked individual whose balance moves through rule applications.
type Member struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Division    string `json:"division" validate:"required"`
	TotalPoints int    `json:"totalPoints"`
	AdminID     string `json:"adminId" validate:"required"`
}

// MemberPatch carries the structural fields a bulk edit may change. Nil fields are left alone.
type MemberPatch struct {
	Name     *string `json:"name,omitempty"`
	Division *string `json:"division,omitempty"`
}

// MemberInput is a member as submitted for creation; InitialPoints seeds the balance.
type MemberInput struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Division      string `json:"division"`
	InitialPoints int    `json:"initialPoints"`
}
