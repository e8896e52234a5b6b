package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the claims issued by the identity service. This service
// only verifies them.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// UserIdentity returns the user id, falling back to the registered subject.
func (c *UserClaims) UserIdentity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
