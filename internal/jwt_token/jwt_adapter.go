package jwttoken

import (
	authmw "copyroom/pkg/platform/middleware/auth"
)

// MiddlewareValidator exposes JWTService to the auth middleware. Tokens whose
// subject is not an account are rejected here, before the middleware sees them.
type MiddlewareValidator struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *MiddlewareValidator {
	return &MiddlewareValidator{service: service}
}

func (a *MiddlewareValidator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	caller, claims, err := a.service.ExtractCaller(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Subject: caller.Hex(), JTI: claims.ID}, nil
}
