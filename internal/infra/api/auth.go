package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/infra/logging"
)

// Claims is the bearer token issued by the identity service.
// Subject is the user id.
type Claims struct {
	Org  string `json:"org"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	issuer string
}

func NewAuthManager(secret, issuer string) *AuthManager {
	return &AuthManager{secret: []byte(secret), issuer: issuer}
}

// Mint signs a token for actor. Used by tooling and tests.
func (a *AuthManager) Mint(actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Org:  actor.OrganizationID,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errors.New("missing token")
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.Org == "" {
		return nil, errors.New("token lacks subject or organization")
	}
	return claims, nil
}

type actorKey struct{}

// Authenticate resolves the bearer token into a model.Actor on the request context.
func (a *AuthManager) Authenticate(dev bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				writeError(w, domain.Wrap(domain.ErrUnauthorized, err), dev)
				return
			}
			actor := model.Actor{
				UserID:         claims.Subject,
				OrganizationID: claims.Org,
				Role:           model.Role(strings.ToLower(claims.Role)),
			}
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			ctx = logging.WithUserID(ctx, actor.UserID)
			ctx = logging.WithOrgID(ctx, actor.OrganizationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ActorFrom(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(model.Actor)
	return a, ok
}
