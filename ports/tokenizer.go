package ports

import (
	"time"

	"github.com/layer-3/warden/core"
)

// Tokenizer converts between claim sets and signed bearer tokens
type Tokenizer interface {
	// Sign issues a token for subject of the given type expiring at expiresAt
	Sign(subject string, expiresAt time.Time, tokenType core.TokenType) (string, error)

	// Verify checks signature and expiry and returns the decoded claims
	Verify(token string) (*core.Claims, error)

	// Decode checks the signature only, ignoring expiry
	Decode(token string) (*core.Claims, error)
}
