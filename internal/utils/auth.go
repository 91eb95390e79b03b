package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kami-operation/kamiops/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenConfig carries the signing secret and lifetimes
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is returned on login and refresh
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateTokens generates Access and Refresh tokens
func GenerateTokens(user *models.User, cfg TokenConfig) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.AccessTTL)

	role := ""
	if user.Role != nil {
		role = user.Role.Code
	}

	claims := jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"role":  role,
		"typ":   TokenTypeAccess,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := jwt.MapClaims{
		"id":  user.ID,
		"typ": TokenTypeRefresh,
		"iat": now.Unix(),
		"exp": now.Add(cfg.RefreshTTL).Unix(),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and validates a token
func ValidateToken(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ParseAccess validates an access token and returns its claims
func ParseAccess(tokenString, secret string) (jwt.MapClaims, error) {
	return parseTyped(tokenString, secret, TokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns the user ID
func ParseRefresh(tokenString, secret string) (string, error) {
	claims, err := parseTyped(tokenString, secret, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return ClaimString(claims, "id"), nil
}

func parseTyped(tokenString, secret, typ string) (jwt.MapClaims, error) {
	claims, err := ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if ClaimString(claims, "typ") != typ {
		return nil, errors.New("wrong token type")
	}
	if ClaimString(claims, "id") == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// ClaimString reads a string claim, empty when absent
func ClaimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
