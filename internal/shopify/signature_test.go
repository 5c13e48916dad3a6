package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"
)

const testSecret = "hush"

func TestVerifyProxySignature(t *testing.T) {
	t.Parallel()

	query := url.Values{
		"shop":        []string{"acme.myshopify.com"},
		"path_prefix": []string{"/apps/chapp"},
		"timestamp":   []string{"1683849600"},
	}
	query.Set("signature", SignProxyQuery(query, testSecret))

	if err := VerifyProxySignature(query, testSecret); err != nil {
		t.Fatalf("VerifyProxySignature() unexpected error: %v", err)
	}
}

func TestVerifyProxySignature_MultiValueParams(t *testing.T) {
	t.Parallel()

	query := url.Values{
		"shop": []string{"acme.myshopify.com"},
		"ids":  []string{"1", "2", "3"},
	}
	query.Set("signature", SignProxyQuery(query, testSecret))

	if err := VerifyProxySignature(query, testSecret); err != nil {
		t.Fatalf("VerifyProxySignature() unexpected error: %v", err)
	}
}

func TestVerifyProxySignature_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   url.Values
		wantErr error
	}{
		{
			name:    "missing signature",
			query:   url.Values{"shop": []string{"acme.myshopify.com"}},
			wantErr: ErrMissingSignature,
		},
		{
			name: "wrong signature",
			query: url.Values{
				"shop":      []string{"acme.myshopify.com"},
				"signature": []string{"deadbeef"},
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "tampered parameter",
			query: func() url.Values {
				q := url.Values{"shop": []string{"acme.myshopify.com"}}
				q.Set("signature", SignProxyQuery(q, testSecret))
				q.Set("shop", "evil.myshopify.com")
				return q
			}(),
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if err := VerifyProxySignature(tc.query, testSecret); !errors.Is(err, tc.wantErr) {
				t.Fatalf("VerifyProxySignature() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestVerifyCallbackHMAC(t *testing.T) {
	t.Parallel()

	query := url.Values{
		"shop":      []string{"acme.myshopify.com"},
		"code":      []string{"abc123"},
		"state":     []string{"nonce"},
		"timestamp": []string{"1683849600"},
	}

	payload := "code=abc123&shop=acme.myshopify.com&state=nonce&timestamp=1683849600"
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(payload))
	query.Set("hmac", hex.EncodeToString(mac.Sum(nil)))

	if err := VerifyCallbackHMAC(query, testSecret); err != nil {
		t.Fatalf("VerifyCallbackHMAC() unexpected error: %v", err)
	}

	query.Set("code", "tampered")
	if err := VerifyCallbackHMAC(query, testSecret); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("VerifyCallbackHMAC() error = %v, want %v", err, ErrInvalidSignature)
	}
}

func TestVerifyWebhookDigest(t *testing.T) {
	t.Parallel()

	body := []byte(`{"domain":"acme.myshopify.com"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if err := VerifyWebhookDigest(body, digest, testSecret); err != nil {
		t.Fatalf("VerifyWebhookDigest() unexpected error: %v", err)
	}

	if err := VerifyWebhookDigest([]byte(`{}`), digest, testSecret); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("VerifyWebhookDigest() error = %v, want %v", err, ErrInvalidSignature)
	}

	if err := VerifyWebhookDigest(body, "", testSecret); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("VerifyWebhookDigest() error = %v, want %v", err, ErrMissingSignature)
	}
}
