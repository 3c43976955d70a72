package models

// Principal is the authenticated actor of a request. It is read-only once built.
type Principal struct {
	UserID    string
	Authority string
	User      *User
}

// PrincipalFromClaims builds a principal from verified token claims.
func PrincipalFromClaims(claims *JWTClaims) *Principal {
	if claims == nil || claims.UserID == "" {
		return nil
	}
	return &Principal{
		UserID:    claims.UserID,
		Authority: string(claims.Role),
		User: &User{
			ID:        claims.UserID,
			Email:     claims.Email,
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
			Role:      claims.Role,
			Active:    true,
		},
	}
}

// WithAuthority returns a copy acting under a school-specific role.
func (p *Principal) WithAuthority(role string) *Principal {
	if p == nil || role == "" {
		return p
	}
	clone := *p
	clone.Authority = role
	return &clone
}

// IsSystemAdmin reports whether the principal holds the global admin role.
func (p *Principal) IsSystemAdmin() bool {
	return p != nil && p.User != nil && p.User.Role == RoleSystemAdmin
}

// DisplayName returns the user's full name when known.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	return p.User.FullName()
}
