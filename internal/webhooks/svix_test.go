package webhooks

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v.WithClock(func() time.Time { return now })
}

func TestVerifierAcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)
	payload := []byte(`{"type":"user.created","data":{"id":"u1"}}`)

	headers := Headers{
		ID:        "msg_1",
		Timestamp: strconv.FormatInt(now.Unix(), 10),
		Signature: "v1,bm90LXRoaXMtb25l " + v.Sign("msg_1", now, payload),
	}

	if err := v.Verify(payload, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifierRejectsReserializedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)
	original := []byte(`{"type": "user.created", "data": {"id": "u1"}}`)
	reserialized := []byte(`{"type":"user.created","data":{"id":"u1"}}`)

	headers := Headers{ID: "msg_1", Timestamp: strconv.FormatInt(now.Unix(), 10), Signature: v.Sign("msg_1", now, original)}

	if err := v.Verify(reserialized, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifierFailures(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)
	payload := []byte(`{}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	good := v.Sign("msg", now, payload)

	cases := []struct {
		name    string
		headers Headers
		want    error
	}{
		{"missing id", Headers{Timestamp: ts, Signature: good}, ErrMissingHeaders},
		{"missing signature", Headers{ID: "msg", Timestamp: ts}, ErrMissingHeaders},
		{"bad timestamp", Headers{ID: "msg", Timestamp: "yesterday", Signature: good}, ErrInvalidTimestamp},
		{"stale", Headers{ID: "msg", Timestamp: strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10), Signature: good}, ErrTimestampOutOfRange},
		{"future", Headers{ID: "msg", Timestamp: strconv.FormatInt(now.Add(10*time.Minute).Unix(), 10), Signature: good}, ErrTimestampOutOfRange},
		{"wrong id", Headers{ID: "other", Timestamp: ts, Signature: good}, ErrInvalidSignature},
		{"wrong version", Headers{ID: "msg", Timestamp: ts, Signature: "v2," + good[3:]}, ErrInvalidSignature},
		{"not base64", Headers{ID: "msg", Timestamp: ts, Signature: "v1,!!!"}, ErrInvalidSignature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := v.Verify(payload, tc.headers); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}

func TestNewVerifierRejectsBadSecrets(t *testing.T) {
	for _, secret := range []string{"", "whsec_", "whsec_***"} {
		if _, err := NewVerifier(secret); !errors.Is(err, ErrInvalidSecret) {
			t.Fatalf("secret %q: expected ErrInvalidSecret, got %v", secret, err)
		}
	}
}

func TestHeadersFrom(t *testing.T) {
	h := http.Header{}
	h.Set("Svix-Id", " msg_1 ")
	h.Set("Svix-Timestamp", "123")

	headers := HeadersFrom(h)
	if headers.ID != "msg_1" || headers.Timestamp != "123" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
	if headers.Complete() {
		t.Fatal("expected incomplete headers without signature")
	}
}
