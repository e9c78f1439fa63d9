package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
)

// Pickup token verification failures.  The messages are shown to the
// scanning operator as-is.
var (
	ErrTokenEncoding  = errors.New("Invalid token encoding")
	ErrTokenContent   = errors.New("Invalid token content")
	ErrTokenMalformed = errors.New("Malformed token")
	ErrTokenData      = errors.New("Invalid token data")
	ErrTokenSignature = errors.New("Invalid token signature")
	ErrTokenExpired   = errors.New("Token has expired")
)

// GenerateQRToken signs "{order}|{user}|{issued}" and returns the payload
// with its hex MAC appended, base64url encoded without padding.
func GenerateQRToken(orderID, userID int32, secret []byte, now time.Time) string {
	payload := fmt.Sprintf("%d|%d|%d", orderID, userID, now.Unix())
	raw := payload + "|" + hex.EncodeToString(signQR(secret, payload))
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// VerifyQRToken checks the encoding, layout, MAC and age of token and
// returns the order and user it was issued for.
func VerifyQRToken(token string, secret []byte, maxAge time.Duration, now time.Time) (orderID, userID int32, err error) {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, 0, ErrTokenEncoding
	}
	if !utf8.Valid(decoded) {
		return 0, 0, ErrTokenContent
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 4 {
		return 0, 0, ErrTokenMalformed
	}

	order, err1 := strconv.ParseInt(parts[0], 10, 32)
	user, err2 := strconv.ParseInt(parts[1], 10, 32)
	issued, err3 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, ErrTokenData
	}

	expected := hex.EncodeToString(signQR(secret, strings.Join(parts[:3], "|")))
	// ConstantTimeCompare returns 0 for unequal lengths without scanning
	if subtle.ConstantTimeCompare([]byte(expected), []byte(parts[3])) != 1 {
		return 0, 0, ErrTokenSignature
	}

	if now.Unix()-issued > int64(maxAge/time.Second) {
		return 0, 0, ErrTokenExpired
	}
	return int32(order), int32(user), nil
}

func signQR(secret []byte, payload string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// QRSigner binds the pickup secret, token lifetime and clock.
type QRSigner struct {
	secret []byte
	maxAge time.Duration
	clock  clockwork.Clock
}

func NewQRSigner(secret string, maxAge time.Duration, clk clockwork.Clock) *QRSigner {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &QRSigner{secret: []byte(secret), maxAge: maxAge, clock: clk}
}

func (s *QRSigner) Generate(orderID, userID int32) string {
	return GenerateQRToken(orderID, userID, s.secret, s.clock.Now())
}

func (s *QRSigner) Verify(token string) (orderID, userID int32, err error) {
	return VerifyQRToken(token, s.secret, s.maxAge, s.clock.Now())
}
