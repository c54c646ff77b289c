package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	signKey []byte
	clock   core.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer. The key is shared by every
// token type; the type is bound through the audience claim.
func NewJWTTokenizer(signKey []byte, clock core.Clock) ports.Tokenizer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	key := make([]byte, len(signKey))
	copy(key, signKey)
	return &JWTTokenizer{signKey: key, clock: clock}
}

// Sign converts a claim set to a signed token
func (j *JWTTokenizer) Sign(subject string, expiresAt time.Time, tokenType core.TokenType) (string, error) {
	if len(j.signKey) == 0 {
		return "", fmt.Errorf("%w: empty signing key", core.ErrSigning)
	}
	if !tokenType.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedTokenType, tokenType)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(j.clock.Now()),
			Audience:  jwt.ClaimStrings{string(tokenType)},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrSigning, err)
	}

	return signedToken, nil
}

// Verify parses a token, checking signature and expiry
func (j *JWTTokenizer) Verify(tokenStr string) (*core.Claims, error) {
	return j.parse(tokenStr, jwt.WithExpirationRequired(), jwt.WithTimeFunc(j.now))
}

// Decode parses a token, checking the signature only
func (j *JWTTokenizer) Decode(tokenStr string) (*core.Claims, error) {
	return j.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (j *JWTTokenizer) parse(tokenStr string, opts ...jwt.ParserOption) (*core.Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}

	if !token.Valid {
		return nil, core.ErrMalformedToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", core.ErrMalformedToken)
	}

	return toCore(claims)
}

// now truncates to whole seconds so the expiry boundary matches NumericDate
func (j *JWTTokenizer) now() time.Time {
	return j.clock.Now().Truncate(time.Second)
}

func toCore(claims *Claims) (*core.Claims, error) {
	if len(claims.Audience) != 1 {
		return nil, fmt.Errorf("%w: missing type", core.ErrMalformedToken)
	}
	tokenType := core.TokenType(claims.Audience[0])
	if !tokenType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", core.ErrMalformedToken, tokenType)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: incomplete claims", core.ErrMalformedToken)
	}

	return &core.Claims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Type:      tokenType,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
