package tokenizer

import "github.com/golang-jwt/jwt/v5"

// Claims are the standard claims; the token type rides in the audience
type Claims struct {
	jwt.RegisteredClaims
}
