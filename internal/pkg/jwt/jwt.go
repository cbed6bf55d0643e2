package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims carries either a login session (Subject set) or an API token
// (Name/Description/Expiry set). Expiry is unix seconds.
type Claims struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Expiry      int64  `json:"expiry,omitempty"`
	jwtlib.RegisteredClaims
}

var ErrExpired = errors.New("token expired")

func GenerateToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func GenerateAPIToken(name, description string, expiry int64, secret []byte) (string, error) {
	claims := Claims{
		Name:        name,
		Description: description,
		Expiry:      expiry,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt: jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Expiry > 0 && claims.Expiry < time.Now().Unix() {
		return nil, ErrExpired
	}
	return claims, nil
}
