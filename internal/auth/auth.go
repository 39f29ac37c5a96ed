package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"offgrid-chat/internal/config"
	"offgrid-chat/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when the access password does not
// match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims carried in issued tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates access tokens for the single-user
// deployment. When no access password is configured, authentication is
// disabled and the middleware passes every request through.
type Authenticator struct {
	secret       []byte
	passwordHash []byte
	expiration   time.Duration
}

// NewAuthenticator builds an Authenticator from config. The access
// password is hashed once at startup so later comparisons never hold
// the plaintext.
func NewAuthenticator(authConfig config.AuthConfig) (*Authenticator, error) {
	a := &Authenticator{
		secret:     authConfig.JWTSecret,
		expiration: authConfig.TokenExpiration,
	}

	if authConfig.AccessPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(authConfig.AccessPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		a.passwordHash = hash
	}

	return a, nil
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool {
	return a.passwordHash != nil
}

// Login checks the access password and issues a token.
func (a *Authenticator) Login(password string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("authentication is not configured")
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		logger.Log.Warn("Login failed: invalid password")
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a token string.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// Middleware rejects requests without a valid bearer token. With
// authentication disabled it is a no-op.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			http.Error(w, "missing or malformed authorization header", http.StatusUnauthorized)
			return
		}

		if _, err := a.ValidateToken(tokenString); err != nil {
			logger.Log.WithError(err).Debug("Token validation failed")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
