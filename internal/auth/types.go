// Package auth issues and verifies session tokens and gates routes by role.
package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleLogistic Role = "logistic"
)

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleOperator, RoleLogistic:
		return r, true
	}
	return "", false
}

// User is a facility badge holder. Matricule is the badge number and the
// primary key.
type User struct {
	Matricule string    `dynamodbav:"matricule" json:"matricule"`
	Role      Role      `dynamodbav:"role" json:"role"`
	Name      string    `dynamodbav:"name,omitempty" json:"name,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}
