package model

type RuleType string

const (
	RuleAchievement RuleType = "ACHIEVEMENT"
	RuleViolation   RuleType = "VIOLATION"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	return t == RuleAchievement || t == RuleViolation
}

// RuleTypeFor returns the type a rule with the given point value must have.
func RuleTypeFor(points int) RuleType {
	if points > 0 {
		return RuleAchievement
	}
	return RuleViolation
}

type Rule struct {
	ID          string   `json:"id" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Type        RuleType `json:"type" validate:"required,oneof=ACHIEVEMENT VIOLATION"`
	Points      int      `json:"points"`
	AdminID     string   `json:"adminId" validate:"required"`
}

// WarningRule is a declarative alert threshold. It is evaluated against live
// balances and never recorded as an event.
type WarningRule struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Threshold       int    `json:"threshold"`
	Message         string `json:"message" validate:"required"`
	Action          string `json:"action" validate:"required"`
	TextColor       string `json:"textColor" validate:"required,hexcolor_short"`
	BackgroundColor string `json:"backgroundColor" validate:"required,hexcolor_short"`
	AdminID         string `json:"adminId" validate:"required"`
}

// Triggered reports whether a balance is at or below the rule's threshold.
func (w WarningRule) Triggered(points int) bool {
	return points <= w.Threshold
}

// Warning pairs a member with a warning rule it currently triggers.
type Warning struct {
	Member Member      `json:"member"`
	Rule   WarningRule `json:"rule"`
}
