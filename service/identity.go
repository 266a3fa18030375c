package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity пользователь, стоящий за соединением
type Identity interface {
	UserID() string
	Username() string
	IsGuest() bool
}

// Authenticated пользователь с проверенным токеном
type Authenticated struct {
	ID   string
	Name string
}

func (a Authenticated) UserID() string   { return a.ID }
func (a Authenticated) Username() string { return a.Name }
func (a Authenticated) IsGuest() bool    { return false }

// Guest временный пользователь без токена
type Guest struct {
	ID string
}

func (g Guest) UserID() string   { return g.ID }
func (g Guest) Username() string { return "Guest" }
func (g Guest) IsGuest() bool    { return true }

// NewGuest создает гостя с новым идентификатором
func NewGuest() Guest {
	return Guest{ID: "guest-" + uuid.NewString()}
}

type tokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IdentityResolver проверяет подписанный токен и возвращает пользователя.
// Невалидный токен не отклоняет соединение, а превращает его в гостя.
type IdentityResolver struct {
	secret []byte
	logger *zap.Logger
}

// NewIdentityResolver создает резолвер с секретом HS256
func NewIdentityResolver(secret string, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{
		secret: []byte(secret),
		logger: logger,
	}
}

// Resolve возвращает пользователя для токена
func (r *IdentityResolver) Resolve(token string) Identity {
	if token == "" {
		return NewGuest()
	}

	identity, err := r.parse(token)
	if err != nil {
		guest := NewGuest()
		r.logger.Warn("Invalid credential, falling back to guest",
			zap.String("guest_id", guest.ID),
			zap.Error(err),
		)
		return guest
	}
	return identity
}

func (r *IdentityResolver) parse(token string) (Identity, error) {
	if len(r.secret) == 0 {
		return nil, errors.New("token verification is not configured")
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	id := claims.Subject
	if id == "" {
		id = claims.UserID
	}
	if id == "" {
		return nil, errors.New("token has no subject")
	}

	name := claims.Username
	if name == "" {
		name = id
	}
	return Authenticated{ID: id, Name: name}, nil
}

// TokenFromRequest достает токен из query, заголовка Authorization или cookie
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}
