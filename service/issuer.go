package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/ports"
)

// Lifetimes configures how long each credential type stays valid
type Lifetimes struct {
	Access        time.Duration
	Renewal       time.Duration
	ResetPassword time.Duration
	VerifyEmail   time.Duration
}

// DefaultLifetimes matches the process defaults in config.
func DefaultLifetimes() Lifetimes {
	return Lifetimes{
		Access:        15 * time.Minute,
		Renewal:       30 * 24 * time.Hour,
		ResetPassword: 30 * time.Minute,
		VerifyEmail:   24 * time.Hour,
	}
}

func (l Lifetimes) of(t core.TokenType) time.Duration {
	switch t {
	case core.TokenTypeAccess:
		return l.Access
	case core.TokenTypeRenewal:
		return l.Renewal
	case core.TokenTypeResetPassword:
		return l.ResetPassword
	case core.TokenTypeVerifyEmail:
		return l.VerifyEmail
	}
	return 0
}

// Issuer mints credentials and records the persisted ones in the ledger
type Issuer struct {
	tokenizer ports.Tokenizer
	ledger    ports.Ledger
	lifetimes Lifetimes
	clock     core.Clock
	metrics   *metrics.Metrics
}

// NewIssuer creates an issuer. The clock should be the one the tokenizer
// uses so issuance and expiry agree.
func NewIssuer(tokenizer ports.Tokenizer, ledger ports.Ledger, lifetimes Lifetimes, clock core.Clock) *Issuer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Issuer{
		tokenizer: tokenizer,
		ledger:    ledger,
		lifetimes: lifetimes,
		clock:     clock,
	}
}

// WithMetrics counts every signed token
func (i *Issuer) WithMetrics(m *metrics.Metrics) *Issuer {
	i.metrics = m
	return i
}

// IssueAccessAndRenewal mints a session pair. Only the renewal half is recorded.
func (i *Issuer) IssueAccessAndRenewal(ctx context.Context, userID string) (*core.TokenSet, error) {
	set, _, err := i.issueSession(ctx, userID)
	return set, err
}

// issueSession also returns the ledger entry ID of the renewal credential.
func (i *Issuer) issueSession(ctx context.Context, userID string) (*core.TokenSet, string, error) {
	access, err := i.sign(userID, core.TokenTypeAccess)
	if err != nil {
		return nil, "", err
	}

	renewal, entryID, err := i.issueRecorded(ctx, userID, core.TokenTypeRenewal)
	if err != nil {
		return nil, "", err
	}

	return &core.TokenSet{Access: *access, Renewal: *renewal}, entryID, nil
}

// IssueSinglePurpose mints and records a reset or verification token.
// Earlier tokens of the same type stay valid until one is consumed.
func (i *Issuer) IssueSinglePurpose(ctx context.Context, userID string, tokenType core.TokenType) (*core.IssuedToken, error) {
	if tokenType != core.TokenTypeResetPassword && tokenType != core.TokenTypeVerifyEmail {
		return nil, fmt.Errorf("%w: %q is not single-purpose", core.ErrUnsupportedTokenType, tokenType)
	}

	issued, _, err := i.issueRecorded(ctx, userID, tokenType)
	return issued, err
}

func (i *Issuer) issueRecorded(ctx context.Context, userID string, tokenType core.TokenType) (*core.IssuedToken, string, error) {
	issued, err := i.sign(userID, tokenType)
	if err != nil {
		return nil, "", err
	}

	entryID, err := i.ledger.Record(ctx, &core.LedgerEntry{
		Token:     issued.Token,
		Type:      tokenType,
		OwnerID:   userID,
		ExpiresAt: issued.Expires,
		CreatedAt: i.clock.Now(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("record %s token: %w", tokenType, err)
	}

	return issued, entryID, nil
}

func (i *Issuer) sign(userID string, tokenType core.TokenType) (*core.IssuedToken, error) {
	// The JWT carries whole seconds; hand out the same instant it encodes.
	expires := i.clock.Now().Add(i.lifetimes.of(tokenType)).Truncate(time.Second)

	token, err := i.tokenizer.Sign(userID, expires, tokenType)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	i.metrics.TokenIssued(tokenType)

	return &core.IssuedToken{Token: token, Expires: expires}, nil
}
