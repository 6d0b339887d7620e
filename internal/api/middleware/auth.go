package middleware

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-mint-reconciler/internal/api/shared/errors"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
)

const (
	AUTH_METHOD_JWT    = "jwt"
	AUTH_METHOD_APIKEY = "apikey"

	// PRINCIPAL_KEY holds the authenticated Principal in the gin context
	PRINCIPAL_KEY = "principal"

	// JWT_CLOCK_SKEW is the leeway applied to exp and nbf
	JWT_CLOCK_SKEW = 30 * time.Second
)

type principalCtxKey struct{}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTPublicKey is the RSA public key in PEM format that verifies RS256 bearer tokens
	JWTPublicKey string
	// APIKeys are accepted API keys, either "name=secret" or a bare secret
	APIKeys []string
}

// Enabled reports whether any credential is configured
func (c AuthConfig) Enabled() bool {
	if c.JWTPublicKey != "" {
		return true
	}
	for _, key := range c.APIKeys {
		if key != "" {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller of a mint endpoint
type Principal struct {
	Method string // AUTH_METHOD_JWT or AUTH_METHOD_APIKEY
	Name   string // JWT subject or API key name
}

func (p Principal) String() string {
	return p.Method + ":" + p.Name
}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the caller stored by the Auth middleware
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

type apiKey struct {
	name   string
	secret []byte
}

// authenticator verifies Authorization headers against a parsed configuration
type authenticator struct {
	publicKey    *rsa.PublicKey
	publicKeyErr error
	parser       *jwt.Parser
	apiKeys      []apiKey
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithLeeway(JWT_CLOCK_SKEW),
		),
	}

	if cfg.JWTPublicKey == "" {
		a.publicKeyErr = errors.New("JWT public key not configured")
	} else {
		a.publicKey, a.publicKeyErr = parseRSAPublicKey(cfg.JWTPublicKey)
		if a.publicKeyErr != nil {
			logger.Error(fmt.Errorf("invalid JWT public key: %w", a.publicKeyErr))
		}
	}

	for _, entry := range cfg.APIKeys {
		if key, ok := parseAPIKey(entry); ok {
			a.apiKeys = append(a.apiKeys, key)
		}
	}

	return a
}

// parseAPIKey splits "name=secret". A bare secret is named by a short fingerprint so logs
// never carry the secret itself.
func parseAPIKey(entry string) (apiKey, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return apiKey{}, false
	}

	if name, secret, found := strings.Cut(entry, "="); found && name != "" && secret != "" {
		return apiKey{name: name, secret: []byte(secret)}, true
	}

	sum := sha256.Sum256([]byte(entry))
	return apiKey{name: "key-" + hex.EncodeToString(sum[:4]), secret: []byte(entry)}, true
}

// authenticate resolves the caller of an Authorization header
func (a *authenticator) authenticate(header string) (Principal, error) {
	if header == "" {
		return Principal{}, errors.New("missing Authorization header")
	}

	scheme, credentials, found := strings.Cut(header, " ")
	if !found || credentials == "" {
		return Principal{}, errors.New("invalid Authorization header format")
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		subject, err := a.verifyJWT(credentials)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Method: AUTH_METHOD_JWT, Name: subject}, nil
	case "apikey":
		name, err := a.matchAPIKey(credentials)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Method: AUTH_METHOD_APIKEY, Name: name}, nil
	default:
		return Principal{}, fmt.Errorf("unsupported authorization type: %s", scheme)
	}
}

// verifyJWT checks an RS256 token and returns its subject
func (a *authenticator) verifyJWT(token string) (string, error) {
	if a.publicKeyErr != nil {
		return "", a.publicKeyErr
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.publicKey, nil
	}); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// matchAPIKey compares against every configured key in constant time
func (a *authenticator) matchAPIKey(secret string) (string, error) {
	if len(a.apiKeys) == 0 {
		return "", errors.New("no API keys configured")
	}

	var name string
	for _, key := range a.apiKeys {
		if subtle.ConstantTimeCompare(key.secret, []byte(secret)) == 1 {
			name = key.name
		}
	}
	if name == "" {
		return "", errors.New("invalid API key")
	}
	return name, nil
}

// Auth returns a gin middleware accepting RS256 bearer tokens and API keys.
// The caller is stored under PRINCIPAL_KEY and on the request context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	a := newAuthenticator(cfg)

	return func(c *gin.Context) {
		principal, err := a.authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.Response{
				Error: apierrors.NewUnauthorizedError("Authentication failed", err.Error()),
			})
			return
		}

		c.Set(PRINCIPAL_KEY, principal)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// parseRSAPublicKey accepts PKIX and PKCS1 PEM blocks
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not an RSA key")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PublicKey(block.Bytes)
}
