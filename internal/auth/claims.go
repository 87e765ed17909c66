package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Role names. Keep these stable; they are embedded in issued tokens.
const (
	// RoleParticipant may submit its own voice samples and query its own call state.
	RoleParticipant = "participant"
	// RoleOperator provisions directory entries and enrolls voices for any identity.
	RoleOperator = "operator"
)

func IsKnownRole(role string) bool {
	return role == RoleParticipant || role == RoleOperator
}

// Claims are the only supported JWT claims shape for this service.
// UserID is the directory identity the token speaks for.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
