package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

const issuer = "conecta-core"

// consoleClaims is the wire shape of a console token. The user ID
// rides in the registered subject claim.
type consoleClaims struct {
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	SessionID string      `json:"sid"`
	jwt.RegisteredClaims
}

// Adapter signs console tokens with HS256 and hashes passwords with
// bcrypt.
type Adapter struct {
	secret []byte
	cost   int
}

// NewAdapter creates an auth adapter with the given signing secret.
func NewAdapter(secret string) *Adapter {
	return &Adapter{secret: []byte(secret), cost: bcrypt.DefaultCost}
}

// NewAdapterWithCost overrides the bcrypt cost, mainly so tests stay
// fast.
func NewAdapterWithCost(secret string, cost int) *Adapter {
	return &Adapter{secret: []byte(secret), cost: cost}
}

// HashPassword generates a bcrypt hash from a plaintext password
func (a *Adapter) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a bcrypt hash
func (a *Adapter) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken signs a JWT carrying the domain claims.
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	wire := consoleClaims{
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(a.secret)
}

// ParseToken validates a JWT and extracts the domain claims. Tokens
// signed with any other method or issuer are rejected.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	var wire consoleClaims
	token, err := jwt.ParseWithClaims(tokenString, &wire,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &domain.TokenClaims{
		UserID:    wire.Subject,
		Email:     wire.Email,
		Role:      wire.Role,
		SessionID: wire.SessionID,
		IssuedAt:  wire.IssuedAt.Unix(),
		ExpiresAt: wire.ExpiresAt.Unix(),
	}, nil
}
