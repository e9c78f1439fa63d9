// Package auth turns bearer credentials into principals.  Operator tokens
// are HS256 JWTs minted by this service; user tokens are RS256 identity
// tokens from the campus identity provider.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type UserStore interface {
	Upsert(ctx context.Context, externalID string, email *string, now time.Time) (int32, error)
}

// IdentityIssuerPrefix is prepended to the project id to form the
// expected issuer of user tokens.
const IdentityIssuerPrefix = "https://securetoken.google.com/"

type userClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Resolver maps a bearer token to a principal.
type Resolver struct {
	operator  utils.OperatorTokenConfig
	projectID string
	keys      KeySource
	users     UserStore
	clock     clockwork.Clock
}

func NewResolver(operator utils.OperatorTokenConfig, projectID string, keys KeySource, users UserStore, clk clockwork.Clock) *Resolver {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Resolver{operator: operator, projectID: projectID, keys: keys, users: users, clock: clk}
}

// Resolve tries the operator token first and the identity token second.
// A verified user is upserted so the same subject keeps its user id.  A
// token neither path accepts yields ErrUnauthenticated; an upsert failure
// is returned as is.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (model.Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrUnauthenticated
	}

	if canteenID, err := utils.ParseOperatorToken(r.operator, bearer, r.clock.Now); err == nil {
		return model.AdminPrincipal{CanteenID: canteenID}, nil
	}

	claims, err := r.verifyUser(ctx, bearer)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	var email *string
	if claims.Email != "" {
		email = &claims.Email
	}
	userID, err := r.users.Upsert(ctx, claims.Subject, email, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return model.UserPrincipal{UserID: userID, ExternalID: claims.Subject, Email: email}, nil
}

func (r *Resolver) verifyUser(ctx context.Context, raw string) (*userClaims, error) {
	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, ErrKeyNotFound
			}
			return r.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(IdentityIssuerPrefix+r.projectID),
		jwt.WithAudience(r.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("identity token without subject")
	}
	return claims, nil
}
