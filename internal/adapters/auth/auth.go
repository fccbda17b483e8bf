package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// User is the authenticated caller.
type User struct {
	ID   domain.UserID
	Name string
}

type Authenticator interface {
	Authenticate(r *http.Request) (User, error)
}

// sessionClaims are the claims of a session token.
type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 session tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	now    func() time.Time
}

func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: session secret is empty", domain.ErrConfig)
	}
	return &JWTAuthenticator{secret: []byte(secret), now: time.Now}, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (User, error) {
	token, err := extractBearer(r)
	if err != nil {
		return User{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	claims := &sessionClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return User{ID: domain.UserID(claims.Subject), Name: claims.Name}, nil
}

// Issue signs a session token for u valid for ttl.
func (a *JWTAuthenticator) Issue(u User, ttl time.Duration) (string, error) {
	now := a.now()
	claims := sessionClaims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// HeaderAuthenticator trusts X-User-ID and X-User-Name. Development only.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (User, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return User{}, fmt.Errorf("%w: %s header is required", ErrInvalidToken, HeaderUserID)
	}
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = id
	}
	return User{ID: domain.UserID(id), Name: name}, nil
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
