package port

import "github.com/Wyydra/huddle/internal/core/domain"

type TokenIssuer interface {
	Issue(claims domain.Claims) (string, error)
}

type TokenVerifier interface {
	Verify(token string) (domain.Claims, error)
}
