package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
)

// Links are the URL prefixes mailed tokens are appended to
type Links struct {
	ResetPassword string
	VerifyEmail   string
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	ledger    ports.Ledger
	users     ports.UserStore
	hasher    ports.Hasher
	mailer    ports.MailSender
	issuer    *Issuer

	eventPub ports.EventPublisher
	metrics  *metrics.Metrics
	clock    core.Clock
	log      zerolog.Logger
	links    Links

	revokeSessionsOnReset bool

	// digest compared against when the email is unknown, so both login
	// failures pay the same hashing cost
	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	ledger ports.Ledger,
	users ports.UserStore,
	hasher ports.Hasher,
	mailer ports.MailSender,
	lifetimes Lifetimes,
) *AuthService {
	clock := core.SystemClock{}
	return &AuthService{
		tokenizer: tokenizer,
		ledger:    ledger,
		users:     users,
		hasher:    hasher,
		mailer:    mailer,
		issuer:    NewIssuer(tokenizer, ledger, lifetimes, clock),
		clock:     clock,
		log:       zerolog.Nop(),
	}
}

func (s *AuthService) WithLogger(log zerolog.Logger) *AuthService {
	s.log = log.With().Str("component", "auth").Logger()
	return s
}

// WithEvents publishes logout, rotation and reset events. Publishing is
// best effort and never fails the operation.
func (s *AuthService) WithEvents(pub ports.EventPublisher) *AuthService {
	s.eventPub = pub
	return s
}

func (s *AuthService) WithMetrics(m *metrics.Metrics) *AuthService {
	s.metrics = m
	s.issuer.WithMetrics(m)
	return s
}

// WithClock replaces the time source for issuance and ledger expiry checks.
// Pass the same clock to the tokenizer.
func (s *AuthService) WithClock(clock core.Clock) *AuthService {
	s.clock = clock
	s.issuer.clock = clock
	return s
}

func (s *AuthService) WithLinks(links Links) *AuthService {
	s.links = links
	return s
}

// WithSessionRevocationOnReset makes a completed password reset also drop
// every renewal credential of the user.
func (s *AuthService) WithSessionRevocationOnReset(enabled bool) *AuthService {
	s.revokeSessionsOnReset = enabled
	return s
}

// Issuer returns the credential issuer used by this service
func (s *AuthService) Issuer() *Issuer {
	return s.issuer
}

// Login checks a password. Unknown email and wrong password fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.hasher.Compare(password, s.dummy())
		return nil, s.reject("login", core.ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, s.reject("login", core.ErrInvalidCredentials, errors.New("password mismatch"))
	}

	clean := user.Sanitized()
	return &clean, nil
}

// Profile returns a user without the password hash
func (s *AuthService) Profile(ctx context.Context, userID string) (*core.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	clean := user.Sanitized()
	return &clean, nil
}

// IssueSession mints an access and renewal pair for an authenticated user
func (s *AuthService) IssueSession(ctx context.Context, userID string) (*core.TokenSet, error) {
	return s.issuer.IssueAccessAndRenewal(ctx, userID)
}

// Logout consumes a renewal credential. The signature must be valid but an
// expired token can still be logged out while its entry exists.
func (s *AuthService) Logout(ctx context.Context, renewalToken string) error {
	claims, err := s.tokenizer.Decode(renewalToken)
	if err != nil {
		return s.reject("logout", core.ErrNotFound, err)
	}
	if claims.Type != core.TokenTypeRenewal {
		return s.reject("logout", core.ErrNotFound, wrongType(claims.Type))
	}

	entry, err := s.ledger.FindValid(ctx, renewalToken, core.TokenTypeRenewal, claims.Subject)
	if errors.Is(err, core.ErrNotFound) {
		return s.reject("logout", core.ErrNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("find renewal entry: %w", err)
	}

	if err := s.consume(ctx, entry); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return s.reject("logout", core.ErrNotFound, err)
		}
		return err
	}

	s.log.Info().Str("user_id", claims.Subject).Msg("session logged out")
	if s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, claims.Subject, entry.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", claims.Subject).Msg("failed to publish logout event")
		}
	}

	return nil
}

// Refresh rotates a renewal credential: the old one is consumed and a new
// pair is issued. Every rejection is core.ErrUnauthenticated.
func (s *AuthService) Refresh(ctx context.Context, renewalToken string) (*core.TokenSet, error) {
	entry, err := s.redeem(ctx, "refresh", renewalToken, core.TokenTypeRenewal, core.ErrUnauthenticated)
	if err != nil {
		return nil, err
	}

	set, newEntryID, err := s.issuer.issueSession(ctx, entry.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishRotation(ctx, entry.OwnerID, entry.ID, newEntryID); err != nil {
			s.log.Warn().Err(err).Str("user_id", entry.OwnerID).Msg("failed to publish rotation event")
		}
	}

	return set, nil
}

// Revoke marks a renewal credential unusable without consuming it
func (s *AuthService) Revoke(ctx context.Context, renewalToken string) error {
	claims, err := s.tokenizer.Decode(renewalToken)
	if err != nil {
		return s.reject("revoke", core.ErrNotFound, err)
	}
	if claims.Type != core.TokenTypeRenewal {
		return s.reject("revoke", core.ErrNotFound, wrongType(claims.Type))
	}

	if err := s.ledger.Revoke(ctx, renewalToken); err != nil {
		return fmt.Errorf("revoke renewal entry: %w", err)
	}
	return nil
}

// LogoutAll drops every renewal credential of a user
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.ledger.PurgeByOwnerAndType(ctx, userID, core.TokenTypeRenewal); err != nil {
		return fmt.Errorf("purge renewal entries: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("all sessions logged out")
	return nil
}

// ValidateAccessToken checks an access credential. It never touches the ledger.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Claims, error) {
	claims, err := s.tokenizer.Verify(accessToken)
	if err != nil {
		return nil, s.reject("validate", core.ErrUnauthenticated, err)
	}
	if claims.Type != core.TokenTypeAccess {
		return nil, s.reject("validate", core.ErrUnauthenticated, wrongType(claims.Type))
	}
	return claims, nil
}

// RequestPasswordReset mails a reset link. Unknown emails are reported as
// core.ErrNotFound. A mail failure is logged and not returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	issued, err := s.issuer.IssueSinglePurpose(ctx, user.ID, core.TokenTypeResetPassword)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\nFollow this link before %s to choose a new password:\n%s%s\n\nIf you did not ask for this, ignore this message.\n",
		issued.Expires.UTC().Format("2006-01-02 15:04 MST"), s.links.ResetPassword, issued.Token,
	)
	s.send(ctx, user, "Reset your password", body)

	return nil
}

// CompletePasswordReset sets a new password using a reset token. Every
// outstanding reset token of the user dies with it.
func (s *AuthService) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if newPassword == "" {
		return s.reject("reset_password", core.ErrResetFailed, errors.New("empty password"))
	}

	claims, err := s.tokenizer.Verify(resetToken)
	if err != nil {
		return s.reject("reset_password", core.ErrResetFailed, err)
	}

	// Hash before redeeming so an unusable password does not burn the token.
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrResetFailed, err)
	}

	entry, err := s.redeemClaims(ctx, "reset_password", resetToken, claims, core.TokenTypeResetPassword, core.ErrResetFailed)
	if err != nil {
		return err
	}

	if _, err := s.users.Update(ctx, entry.OwnerID, core.UserUpdate{PasswordHash: &digest}); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return s.reject("reset_password", core.ErrResetFailed, err)
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.ledger.PurgeByOwnerAndType(ctx, entry.OwnerID, core.TokenTypeResetPassword); err != nil {
		return fmt.Errorf("purge reset tokens: %w", err)
	}
	if s.revokeSessionsOnReset {
		if err := s.ledger.PurgeByOwnerAndType(ctx, entry.OwnerID, core.TokenTypeRenewal); err != nil {
			return fmt.Errorf("purge renewal tokens: %w", err)
		}
	}

	s.log.Info().Str("user_id", entry.OwnerID).Msg("password reset completed")
	if s.eventPub != nil {
		if err := s.eventPub.PublishPasswordReset(ctx, entry.OwnerID); err != nil {
			s.log.Warn().Err(err).Str("user_id", entry.OwnerID).Msg("failed to publish password reset event")
		}
	}

	return nil
}

// RequestEmailVerification mails a verification link; verified users are skipped
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	issued, err := s.issuer.IssueSinglePurpose(ctx, user.ID, core.TokenTypeVerifyEmail)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	body := fmt.Sprintf(
		"Confirm your email address by following this link before %s:\n%s%s\n",
		issued.Expires.UTC().Format("2006-01-02 15:04 MST"), s.links.VerifyEmail, issued.Token,
	)
	s.send(ctx, user, "Verify your email address", body)

	return nil
}

// CompleteEmailVerification marks the owner's email verified
func (s *AuthService) CompleteEmailVerification(ctx context.Context, verifyToken string) error {
	entry, err := s.redeem(ctx, "verify_email", verifyToken, core.TokenTypeVerifyEmail, core.ErrVerificationFailed)
	if err != nil {
		return err
	}

	verified := true
	if _, err := s.users.Update(ctx, entry.OwnerID, core.UserUpdate{EmailVerified: &verified}); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return s.reject("verify_email", core.ErrVerificationFailed, err)
		}
		return fmt.Errorf("update email verified: %w", err)
	}

	if err := s.ledger.PurgeByOwnerAndType(ctx, entry.OwnerID, core.TokenTypeVerifyEmail); err != nil {
		return fmt.Errorf("purge verification tokens: %w", err)
	}

	s.log.Info().Str("user_id", entry.OwnerID).Msg("email verified")
	return nil
}

// dummy hashes a throwaway password once, at the hasher's configured cost.
// It never matches a real login because no user owns it.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("warden-unknown-account")
		if err != nil {
			s.log.Error().Err(err).Msg("failed to hash dummy password")
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

// redeem verifies a persisted credential and consumes its ledger entry.
// Credential failures collapse to public; store failures are returned wrapped.
func (s *AuthService) redeem(ctx context.Context, op, token string, tokenType core.TokenType, public error) (*core.LedgerEntry, error) {
	claims, err := s.tokenizer.Verify(token)
	if err != nil {
		return nil, s.reject(op, public, err)
	}
	return s.redeemClaims(ctx, op, token, claims, tokenType, public)
}

func (s *AuthService) redeemClaims(ctx context.Context, op, token string, claims *core.Claims, tokenType core.TokenType, public error) (*core.LedgerEntry, error) {
	if claims.Type != tokenType {
		return nil, s.reject(op, public, wrongType(claims.Type))
	}

	entry, err := s.ledger.FindValid(ctx, token, tokenType, claims.Subject)
	if errors.Is(err, core.ErrNotFound) {
		return nil, s.reject(op, public, err)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s entry: %w", tokenType, err)
	}

	if entry.Expired(s.clock.Now()) {
		return nil, s.reject(op, public, core.ErrTokenExpired)
	}

	if err := s.consume(ctx, entry); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// lost a consume race
			return nil, s.reject(op, public, err)
		}
		return nil, err
	}

	return entry, nil
}

func (s *AuthService) consume(ctx context.Context, entry *core.LedgerEntry) error {
	if err := s.ledger.Consume(ctx, entry.Token); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("consume %s entry: %w", entry.Type, err)
	}
	s.metrics.TokenConsumed(entry.Type)
	return nil
}

func (s *AuthService) send(ctx context.Context, user *core.User, subject, body string) {
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Str("subject", subject).Msg("failed to send mail")
	}
}

// reject records why a credential was refused and returns the public error.
func (s *AuthService) reject(op string, public, cause error) error {
	s.log.Debug().Err(cause).Str("operation", op).Msg("credential rejected")
	s.metrics.AuthFailure(op)
	return public
}

func wrongType(t core.TokenType) error {
	return fmt.Errorf("%w: unexpected token type %q", core.ErrMalformedToken, t)
}
