package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/pkg/logger"
)

// Claims is the session token payload.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	Premium bool   `json:"premium,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. An empty secret rejects every token.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Mint signs a token for id valid for ttl.
func (a *Authenticator) Mint(id *model.Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Name:    id.DisplayName,
		Email:   id.Email,
		Picture: id.PhotoURL,
		Premium: id.Premium,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("api.mint: %w", err)
	}
	return signed, nil
}

// Verify parses a token into the identity it carries.
func (a *Authenticator) Verify(token string) (*model.Identity, error) {
	const op = "api.verify"

	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthDisabled)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w: missing subject", op, ErrInvalidToken)
	}
	return &model.Identity{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
		Premium:     claims.Premium,
	}, nil
}

type identityKey struct{}

// IdentityFrom returns the caller established by Authenticate, or nil.
func IdentityFrom(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityKey{}).(*model.Identity)
	return id
}

// Authenticate attaches the bearer token's identity to the request context.
// Requests without a valid token continue anonymously; handlers decide.
func (a *Authenticator) Authenticate(next http.Handler, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.Verify(token)
		if err != nil {
			if !errors.Is(err, ErrAuthDisabled) {
				log.Debug(r.Context(), "rejected bearer token", logger.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = logger.WithUserID(ctx, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(h string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
