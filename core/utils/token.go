package utils

import (
	stderrors "errors"
	"strings"
	"time"

	"go-availability/core/config"
	"go-availability/core/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the identity asserted by the external identity provider.
// Subject is the stable participant id used as the upsert key.
type TokenClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *TokenClaims) ParticipantID() string {
	return c.Subject
}

func secret() ([]byte, *errors.AppError) {
	cfg, ok := config.GetSafe()
	if !ok || cfg.Auth.JWTSecret == "" {
		return nil, errors.NewAppError(errors.ErrInternalServer, "token secret not configured", nil)
	}
	return []byte(cfg.Auth.JWTSecret), nil
}

// GenerateToken signs an HS256 token. The "token" command uses it to mint
// development tokens; production tokens come from the identity provider.
func GenerateToken(subject, name, email string, ttl time.Duration) (string, *errors.AppError) {
	key, appErr := secret()
	if appErr != nil {
		return "", appErr
	}
	cfg, _ := config.GetSafe()

	now := time.Now()
	claims := TokenClaims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Auth.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "sign token failed", err)
	}
	return signed, nil
}

func ValidateAndParseToken(token string) (*TokenClaims, *errors.AppError) {
	key, appErr := secret()
	if appErr != nil {
		return nil, appErr
	}
	cfg, _ := config.GetSafe()

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Auth.Issuer))
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.NewAppError(errors.ErrTokenExpired, "token expired", err)
		}
		return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid token", err)
	}
	if claims.Subject == "" {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "token has no subject", nil)
	}
	return claims, nil
}

// BearerToken strips the "Bearer " prefix; ok is false when absent.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
