package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

// Claims carries the actor id in the subject and its marketplace role.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

// BuildToken signs an HS256 token for actor, valid for ttl.
func BuildToken(secret string, actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(actor.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   actor.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
			Id:        uuid.NewString(),
		},
	})
	return token.SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns the actor it names.
func ParseToken(secret, tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Actor{}, ErrInvalidToken
	}

	actor := Actor{ID: claims.Subject, Role: lifecycle.Role(claims.Role)}
	if !actor.Role.IsValid() {
		return Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return actor, nil
}
