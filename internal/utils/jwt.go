package utils // package utils provides helpers for signing tokens and hashing

import (
	"errors"  // sentinel errors for claim validation
	"strconv" // canteen id <-> subject conversion
	"time"    // expiry arithmetic

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// OperatorToken is a signed canteen-operator JWT along with its expiry.
type OperatorToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// OperatorTokenConfig carries what both issuing and verifying need.  The
// same Issuer and Audience must be used on both sides.
type OperatorTokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

var ErrInvalidSubject = errors.New("token subject is not a canteen id")

// NewOperatorToken builds and signs an HS256 JWT whose subject is the
// canteen id.  now is passed in so the issue time follows the caller's
// clock.
func NewOperatorToken(cfg OperatorTokenConfig, canteenID int32, now time.Time) (OperatorToken, error) {
	// Calculate the expiration time by adding the TTL to the issue time.
	exp := now.UTC().Add(cfg.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		Subject:   strconv.FormatInt(int64(canteenID), 10),
		IssuedAt:  jwt.NewNumericDate(now.UTC()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	// Sign with HS256 and obtain the string form.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return OperatorToken{}, err
	}
	return OperatorToken{Token: signed, Exp: exp}, nil
}

// ParseOperatorToken verifies signature, issuer, audience and expiry with
// zero leeway and returns the canteen id in the subject.  now supplies the
// verification time.
func ParseOperatorToken(cfg OperatorTokenConfig, raw string, now func() time.Time) (int32, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return 0, err
	}
	// Subject must be a positive 32-bit id.
	id, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSubject
	}
	return int32(id), nil
}
