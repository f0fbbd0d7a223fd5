package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const dest = "https://app.example.com/api/cron/check-monitors"

func fixedVerifier(now time.Time) *Verifier {
	v := NewVerifier("current-key", "next-key")
	v.Now = func() time.Time { return now }
	return v
}

func TestVerify_AcceptsCurrentAndNextKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"hello":"world"}`)

	for _, key := range []string{"current-key", "next-key"} {
		tok, err := Sign([]byte(key), dest, body, now, time.Minute)
		require.NoError(t, err)

		c, err := fixedVerifier(now).Verify(tok, body, dest)
		require.NoError(t, err, key)
		assert.Equal(t, Issuer, c.Iss)
		assert.Equal(t, dest, c.Sub)
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte("payload")
	good, err := Sign([]byte("current-key"), dest, body, now, time.Minute)
	require.NoError(t, err)
	foreign, err := Sign([]byte("someone-else"), dest, body, now, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		body  []byte
		url   string
		at    time.Time
	}{
		{"empty token", "", body, dest, now},
		{"garbage", "a.b", body, dest, now},
		{"wrong key", foreign, body, dest, now},
		{"tampered body", good, []byte("payload!"), dest, now},
		{"other destination", good, body, "https://evil.example.com", now},
		{"expired", good, body, dest, now.Add(10 * time.Minute)},
		{"not yet valid", good, body, dest, now.Add(-time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fixedVerifier(tc.at).Verify(tc.token, tc.body, tc.url)
			assert.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestVerify_SubjectIgnoredWithoutURL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok, err := Sign([]byte("current-key"), dest, nil, now, 0)
	require.NoError(t, err)

	_, err = fixedVerifier(now).Verify(tok, nil, "")
	assert.NoError(t, err)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("s3cret", "s3cret"))
	assert.False(t, SecureCompare("s3cret", "s3cre"))
	assert.False(t, SecureCompare("", ""))
}

func TestAPIKeyChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key"), bcrypt.MinCost)
	require.NoError(t, err)
	chk := NewAPIKeyChecker(string(hash))

	r := httptest.NewRequest("GET", "/", nil)
	assert.False(t, chk.Check(r))

	r.Header.Set("X-API-Key", "admin-key")
	assert.True(t, chk.Check(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer admin-key")
	assert.True(t, chk.Check(r))

	r.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, chk.Check(r))

	assert.False(t, NewAPIKeyChecker("").Check(r))
}
