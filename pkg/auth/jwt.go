package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose restricts where a token is accepted; an email-confirmation token
// must not double as an access token.
type Purpose string

const (
	PurposeAccess       Purpose = "access"
	PurposeRefresh      Purpose = "refresh"
	PurposeConfirmEmail Purpose = "confirm_email"
	PurposeResetPass    Purpose = "reset_password"
)

const (
	AccessTokenTTL  = 2 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	MailTokenTTL    = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type contextKey string

// UserKey carries the authenticated *Claims through a request context.
const UserKey contextKey = "user"

type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Purpose Purpose   `json:"purpose"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
}

func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret}
}

// Generate signs a token for the given user, purpose and lifetime.
func (t *Tokens) Generate(userID uuid.UUID, purpose Purpose, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses the token and checks it was issued for the given purpose.
func (t *Tokens) Validate(tokenString string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Purpose != purpose || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
