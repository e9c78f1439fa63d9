package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrKeyNotFound is returned for an unknown key id, including when the key
// endpoint could not be reached.
var ErrKeyNotFound = errors.New("signing key not found")

const defaultKeyTTL = time.Hour

// minRefreshInterval spaces out fetches triggered by unknown key ids, so
// tokens with made-up kids cannot drive traffic to the key endpoint.
const minRefreshInterval = 30 * time.Second

// KeyCache holds the identity provider's rotating signing keys.  The
// endpoint serves a JSON object of key id -> PEM certificate or public
// key.  Keys are refetched on a miss and once the Cache-Control max-age
// of the last fetch has elapsed, but never more than once per
// minRefreshInterval.
type KeyCache struct {
	url    string
	client *http.Client
	clock  clockwork.Clock
	logger *zap.Logger

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	expires     time.Time
	lastAttempt time.Time

	refreshMu sync.Mutex
}

func NewKeyCache(url string, client *http.Client, clk clockwork.Clock, logger *zap.Logger) *KeyCache {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyCache{url: url, client: client, clock: clk, logger: logger, keys: map[string]*rsa.PublicKey{}}
}

// Key returns the verification key for kid.
func (k *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, fresh, cooling := k.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}
	if key == nil && cooling {
		return nil, ErrKeyNotFound
	}

	k.refreshMu.Lock()
	// another caller may have refreshed while we waited
	key, fresh, cooling = k.lookup(kid)
	if (key == nil || !fresh) && !cooling {
		if err := k.refresh(ctx); err != nil {
			k.logger.Warn("refresh identity keys", zap.String("url", k.url), zap.Error(err))
		}
		key, _, _ = k.lookup(kid)
	}
	k.refreshMu.Unlock()

	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// lookup reports the cached key for kid, whether the cache is within its
// max-age, and whether a fetch happened less than minRefreshInterval ago.
func (k *KeyCache) lookup(kid string) (key *rsa.PublicKey, fresh, cooling bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	now := k.clock.Now()
	cooling = !k.lastAttempt.IsZero() && now.Before(k.lastAttempt.Add(minRefreshInterval))
	return k.keys[kid], now.Before(k.expires), cooling
}

func (k *KeyCache) refresh(ctx context.Context) error {
	k.mu.Lock()
	k.lastAttempt = k.clock.Now()
	k.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key endpoint returned %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode keys: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, pem := range raw {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			k.logger.Warn("skip unparsable identity key", zap.String("kid", kid), zap.Error(err))
			continue
		}
		keys[kid] = key
	}

	k.mu.Lock()
	k.keys = keys
	k.expires = k.clock.Now().Add(maxAge(resp.Header.Get("Cache-Control")))
	k.mu.Unlock()
	return nil
}

// maxAge reads max-age from a Cache-Control header, defaulting to an hour.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(strings.Trim(value, `"`)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeyTTL
}
