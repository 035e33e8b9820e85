package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrAuthFailed   = errors.New("authentication failed")
)

// Identity is the verified caller behind a bearer credential
type Identity struct {
	Subject string         `json:"sub"`
	Email   string         `json:"email"`
	Claims  map[string]any `json:"claims,omitempty"`
}

// Role returns the "role" claim, if any
func (i Identity) Role() string {
	role, _ := i.Claims["role"].(string)
	return role
}

// CompanyIDs returns the tenants listed in the "company_ids" claim
func (i Identity) CompanyIDs() []int64 {
	raw, ok := i.Claims["company_ids"].([]any)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			ids = append(ids, int64(n))
		case string:
			if id, err := strconv.ParseInt(n, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Service verifies and issues HS256 bearer credentials
type Service struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		now:       time.Now,
	}
}

// GenerateToken signs a credential for subject/email. Extra claims are merged
// in and may not override the registered ones.
func (s *Service) GenerateToken(subject, email string, extra map[string]any) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["email"] = email
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = now.Add(s.expiry).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return signed, nil
}

// Validate verifies signature and time claims and returns the caller identity.
// Errors are one of ErrNoToken, ErrInvalidToken, ErrExpiredToken or ErrAuthFailed.
func (s *Service) Validate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, classify(err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	return identityFromClaims(claims), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrInvalidToken
	default:
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
}

func identityFromClaims(claims jwt.MapClaims) Identity {
	id := Identity{Claims: map[string]any(claims)}
	id.Subject, _ = claims.GetSubject()
	if id.Subject == "" {
		// credentials issued before "sub" was adopted carry a numeric id
		for _, key := range []string{"user_id", "id"} {
			switch v := claims[key].(type) {
			case string:
				id.Subject = v
			case float64:
				id.Subject = strconv.FormatInt(int64(v), 10)
			}
			if id.Subject != "" {
				break
			}
		}
	}
	id.Email, _ = claims["email"].(string)
	return id
}

type identityKey struct{}

// WithIdentity returns a context carrying the caller identity
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity, if the request was authenticated
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
