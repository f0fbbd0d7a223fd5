package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrSignatureInvalid = errors.New("invalid signature")

// clockSkew is tolerated on nbf and exp.
const clockSkew = 5 * time.Second

// DefaultSignatureTTL is how long a signed request stays valid.
const DefaultSignatureTTL = 5 * time.Minute

// Sign produces the HS256 token the scheduler attaches to each delivery.
func Sign(key []byte, url string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}
	c := Claims{
		Iss:  Issuer,
		Sub:  url,
		Iat:  now.Unix(),
		Nbf:  now.Unix(),
		Exp:  now.Add(ttl).Unix(),
		Jti:  "msg_" + uuid.NewString(),
		Body: BodyHash(body),
	}
	return c.SignedString(key)
}

func (c Claims) SignedString(key []byte) (string, error) {
	header := base64URL([]byte(`{"alg":"HS256","typ":"JWT"}`))

	payloadJSON, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	payload := base64URL(payloadJSON)

	sigInput := header + "." + payload
	sig := hmacSHA256(key, []byte(sigInput))

	return sigInput + "." + base64URL(sig), nil
}

// Verifier accepts tokens signed by the current key, falling back to the next key during rotation.
type Verifier struct {
	Current []byte
	Next    []byte
	Now     func() time.Time
}

func NewVerifier(current, next string) *Verifier {
	return &Verifier{Current: []byte(current), Next: []byte(next), Now: time.Now}
}

// Verify checks token against body. url is compared with the subject only when non-empty.
func (v *Verifier) Verify(token string, body []byte, url string) (*Claims, error) {
	if token == "" {
		return nil, ErrSignatureInvalid
	}
	var lastErr error = ErrSignatureInvalid
	for _, key := range [][]byte{v.Current, v.Next} {
		if len(key) == 0 {
			continue
		}
		c, err := v.verifyWithKey(token, key, body, url)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (v *Verifier) verifyWithKey(token string, key, body []byte, url string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrSignatureInvalid
	}
	headerB64, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(sigB64, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: decode signature", ErrSignatureInvalid)
	}
	if !hmac.Equal(sig, hmacSHA256(key, []byte(headerB64+"."+payloadB64))) {
		return nil, ErrSignatureInvalid
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payloadB64, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload", ErrSignatureInvalid)
	}
	var c Claims
	if err := json.Unmarshal(payloadJSON, &c); err != nil {
		return nil, fmt.Errorf("%w: claims", ErrSignatureInvalid)
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	switch {
	case c.Iss != Issuer:
		return nil, fmt.Errorf("%w: issuer", ErrSignatureInvalid)
	case url != "" && c.Sub != url:
		return nil, fmt.Errorf("%w: subject", ErrSignatureInvalid)
	case now.Add(-clockSkew).Unix() > c.Exp:
		return nil, fmt.Errorf("%w: expired", ErrSignatureInvalid)
	case now.Add(clockSkew).Unix() < c.Nbf:
		return nil, fmt.Errorf("%w: not yet valid", ErrSignatureInvalid)
	case strings.TrimRight(c.Body, "=") != BodyHash(body):
		return nil, fmt.Errorf("%w: body hash", ErrSignatureInvalid)
	}
	return &c, nil
}

func BodyHash(body []byte) string {
	h := sha256.Sum256(body)
	return base64URL(h[:])
}

// SecureCompare compares secrets in constant time. Empty values never match.
func SecureCompare(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func base64URL(data []byte) string {
	s := base64.URLEncoding.EncodeToString(data)
	return trimRight(s, '=')
}

func hmacSHA256(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return mac.Sum(nil)
}

func trimRight(s string, c byte) string {
	i := len(s)
	for i > 0 && s[i-1] == c {
		i--
	}
	return s[:i]
}
