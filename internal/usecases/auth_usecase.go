package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"kasbot/internal/config"
	"kasbot/internal/entities"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAuthDisabled       = errors.New("admin auth is not configured")
)

// AuthUsecase checks the single configured operator and issues admin tokens.
type AuthUsecase struct {
	admin     entities.User
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthUsecase(cfg config.AuthConfig) *AuthUsecase {
	return &AuthUsecase{
		admin: entities.User{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			Role:         entities.RoleAdmin,
		},
		jwtSecret: []byte(cfg.JWTSecret),
		ttl:       cfg.TokenTTL,
		now:       time.Now,
	}
}

func (uc *AuthUsecase) Enabled() bool {
	return len(uc.jwtSecret) > 0 && uc.admin.PasswordHash != ""
}

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	if !uc.Enabled() {
		return "", ErrAuthDisabled
	}
	if username != uc.admin.Username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(uc.admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := uc.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uc.admin.Username,
		"role": uc.admin.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(uc.ttl).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken returns the operator a token was issued to. Only HS256 tokens
// carrying the admin role are accepted.
func (uc *AuthUsecase) ValidateToken(tokenString string) (entities.User, error) {
	if !uc.Enabled() {
		return entities.User{}, ErrAuthDisabled
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return uc.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(uc.now),
	)
	if err != nil || !token.Valid {
		return entities.User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entities.User{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role != entities.RoleAdmin {
		return entities.User{}, ErrInvalidToken
	}
	return entities.User{Username: sub, Role: role}, nil
}
