package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizzytrack/backend/internal/ports"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

const (
	envJWTSecret               = "BIZZY_JWT_SECRET"
	generatedDevJWTSecretBytes = 48
)

// JWTAuthProvider verifies HS256 bearer tokens carrying sub, business_id and
// roles claims.
type JWTAuthProvider struct {
	signingKey []byte
	now        func() time.Time
}

func NewJWTAuthProviderFromEnv() (*JWTAuthProvider, error) {
	secret := strings.TrimSpace(os.Getenv(envJWTSecret))
	if secret == "" {
		if !isDevModeEnabled() {
			return nil, fmt.Errorf("%s is required in production mode", envJWTSecret)
		}

		generatedSecret, err := generateJWTSecret(generatedDevJWTSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate development jwt secret: %w", err)
		}
		secret = generatedSecret
	}
	return NewJWTAuthProvider(secret)
}

func NewJWTAuthProvider(secret string) (*JWTAuthProvider, error) {
	trimmedSecret := strings.TrimSpace(secret)
	if trimmedSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &JWTAuthProvider{
		signingKey: []byte(trimmedSecret),
		now:        time.Now,
	}, nil
}

func (p *JWTAuthProvider) FromRequest(r *http.Request) (ports.AuthContext, error) {
	if p == nil {
		return ports.AuthContext{}, errors.New("auth provider is nil")
	}

	authorizationParts := strings.Fields(strings.TrimSpace(r.Header.Get(headerAuthorization)))
	if len(authorizationParts) == 0 || !strings.EqualFold(authorizationParts[0], strings.TrimSpace(bearerPrefix)) {
		return ports.AuthContext{}, errors.New("missing bearer token")
	}
	if len(authorizationParts) == 1 {
		return ports.AuthContext{}, errors.New("empty bearer token")
	}
	if len(authorizationParts) > 2 {
		return ports.AuthContext{}, errors.New("invalid bearer token format")
	}

	claims, err := p.parseAndValidateToken(authorizationParts[1])
	if err != nil {
		return ports.AuthContext{}, err
	}

	userID := claimString(claims, "sub")
	if userID == "" {
		userID = claimString(claims, "user_id")
	}
	if userID == "" {
		return ports.AuthContext{}, errors.New("token subject is required")
	}

	roles, err := parseRolesClaim(claims["roles"])
	if err != nil {
		return ports.AuthContext{}, err
	}
	if len(roles) == 0 {
		return ports.AuthContext{}, errors.New("token roles are required")
	}

	return ports.AuthContext{
		UserID:     userID,
		BusinessID: claimString(claims, "business_id"),
		Roles:      roles,
	}, nil
}

// Issue signs a token for auth that expires after ttl.
func (p *JWTAuthProvider) Issue(auth ports.AuthContext, ttl time.Duration) (string, error) {
	if p == nil {
		return "", errors.New("auth provider is nil")
	}
	if strings.TrimSpace(auth.UserID) == "" {
		return "", errors.New("token subject is required")
	}
	if len(auth.Roles) == 0 {
		return "", errors.New("token roles are required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := p.now().UTC()
	claims := jwt.MapClaims{
		"sub":   auth.UserID,
		"roles": auth.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if auth.BusinessID != "" {
		claims["business_id"] = auth.BusinessID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *JWTAuthProvider) parseAndValidateToken(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

func parseRolesClaim(value any) ([]string, error) {
	switch typedValue := value.(type) {
	case nil:
		return nil, nil
	case string:
		return parseRoles(typedValue), nil
	case []any:
		roles := make([]string, 0, len(typedValue))
		for _, entry := range typedValue {
			role, ok := entry.(string)
			if !ok {
				return nil, errors.New("token roles must be strings")
			}
			trimmedRole := strings.TrimSpace(role)
			if trimmedRole == "" {
				continue
			}
			roles = append(roles, trimmedRole)
		}
		return roles, nil
	default:
		return nil, errors.New("token roles claim has unsupported type")
	}
}

func claimString(claims map[string]any, claimName string) string {
	rawValue, exists := claims[claimName]
	if !exists {
		return ""
	}
	stringValue, ok := rawValue.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringValue)
}

func isDevModeEnabled() bool {
	rawValue := strings.TrimSpace(os.Getenv("DEV_MODE"))
	if rawValue == "" {
		return false
	}

	devModeEnabled, err := strconv.ParseBool(rawValue)
	if err != nil {
		return false
	}

	return devModeEnabled
}

func generateJWTSecret(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("secret size must be positive")
	}

	randomBytes := make([]byte, size)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(randomBytes), nil
}
