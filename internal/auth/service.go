package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/johnrirwin/newsradar/internal/config"
	"github.com/johnrirwin/newsradar/internal/logging"
)

// Verifier validates bearer tokens issued for NewsRadar readers. Tokens are
// HS256 JWTs whose subject is the user ID.
type Verifier struct {
	config config.AuthConfig
	logger *logging.Logger
	now    func() time.Time
}

// NewVerifier creates a token verifier
func NewVerifier(cfg config.AuthConfig, logger *logging.Logger) *Verifier {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Verifier{config: cfg, logger: logger, now: time.Now}
}

// Enabled reports whether a signing secret is configured. Without one the
// middleware trusts the X-User-ID header, which is only suitable for
// local development.
func (v *Verifier) Enabled() bool {
	return v.config.JWTSecret != ""
}

// IssueToken signs an access token for userID. It backs the dev token
// command and tests; production tokens come from the identity provider.
func (v *Verifier) IssueToken(userID string) (string, error) {
	if !v.Enabled() {
		return "", &AuthError{Code: "not_configured", Message: "no signing secret configured"}
	}
	if userID == "" {
		return "", &AuthError{Code: "invalid_input", Message: "user id is required"}
	}

	now := v.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": v.config.JWTIssuer,
		"aud": v.config.JWTAudience,
		"iat": now.Unix(),
		"exp": now.Add(v.config.TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(v.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken validates a JWT access token and returns the user ID
func (v *Verifier) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.JWTSecret), nil
	}, jwt.WithTimeFunc(v.now))

	if err != nil {
		v.logger.Debug("Rejected access token", logging.WithField("error", err.Error()))
		return "", &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token claims"}
	}

	// Validate issuer and audience
	if iss, _ := claims["iss"].(string); iss != v.config.JWTIssuer {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token issuer"}
	}
	if aud, _ := claims["aud"].(string); aud != v.config.JWTAudience {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token audience"}
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token subject"}
	}

	return userID, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}
