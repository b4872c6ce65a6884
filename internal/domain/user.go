package domain

// UserProfile is a read-only projection of the identity provider's user
// record. It is never constructed locally, only echoed back from a verified
// or freshly authenticated provider call.
type UserProfile struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     string `json:"createdAt,omitempty"`
	LastLoginAt   string `json:"lastLoginAt,omitempty"`
}

// DecodedClaims is the result of verifying an access token. It lives only
// inside a single request's lifetime and is never stored.
type DecodedClaims struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	IssuedAt      int64  `json:"iat"`
	ExpiresAt     int64  `json:"exp"`
}

// Credential is a transient login submission, never persisted
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the token bundle issued by a successful login or refresh
type Session struct {
	User         *UserProfile `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}
