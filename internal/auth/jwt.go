package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks access tokens issued by the auth service without a
// round trip. The HMAC secret is shared with the auth service.
type Validator struct {
	secret []byte
}

// Claims combines our user claims with the registered JWT claims.
type Claims struct {
	UserClaims
	jwt.RegisteredClaims
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ValidateAccessToken validates a token and returns its user claims.
func (v *Validator) ValidateAccessToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &claims.UserClaims, nil
}
