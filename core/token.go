package core

import "time"

// TokenType tags every credential the codec signs. The value is carried in
// the JWT audience and stored verbatim in the ledger.
type TokenType string

const (
	TokenTypeAccess        TokenType = "session:access"
	TokenTypeRenewal       TokenType = "session:renewal"
	TokenTypeResetPassword TokenType = "session:reset_password"
	TokenTypeVerifyEmail   TokenType = "session:verify_email"
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRenewal, TokenTypeResetPassword, TokenTypeVerifyEmail:
		return true
	}
	return false
}

// Persisted reports whether tokens of this type are recorded in the ledger.
func (t TokenType) Persisted() bool {
	return t.Valid() && t != TokenTypeAccess
}

func (t TokenType) String() string { return string(t) }

// Claims is the decoded claim set of a signed credential.
type Claims struct {
	ID        string    // jti
	Subject   string    // user identifier
	Type      TokenType // type tag
	IssuedAt  time.Time // truncated to seconds
	ExpiresAt time.Time // truncated to seconds
}

// LedgerEntry is the durable record of a non-access credential.
type LedgerEntry struct {
	ID        string
	Token     string
	Type      TokenType
	OwnerID   string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Expired reports whether the entry is no longer usable at now. An entry
// whose expiry equals now is expired.
func (e *LedgerEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// IssuedToken is a signed credential together with its expiry.
type IssuedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// TokenSet is the pair handed out on login and on every rotation.
type TokenSet struct {
	Access  IssuedToken `json:"access"`
	Renewal IssuedToken `json:"renewal"`
}
