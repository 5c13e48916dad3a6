package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("signature verification failed")
)

// VerifyProxySignature checks the signature Shopify appends to app
// proxy requests: every query parameter except "signature" rendered as
// key=value (multi-values joined with commas), sorted, concatenated
// with no separator, and HMAC-SHA256 hex digested with the app secret.
func VerifyProxySignature(query url.Values, secret string) error {
	provided := query.Get("signature")
	if provided == "" {
		return ErrMissingSignature
	}

	expected := hexDigest(signaturePayload(query, "signature", ""), secret)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyCallbackHMAC checks the hmac parameter on OAuth callback
// requests. The payload differs from the proxy form: pairs are joined
// with "&" and the digest parameter is named "hmac".
func VerifyCallbackHMAC(query url.Values, secret string) error {
	provided := query.Get("hmac")
	if provided == "" {
		return ErrMissingSignature
	}

	expected := hexDigest(signaturePayload(query, "hmac", "&"), secret)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWebhookDigest checks the base64 HMAC-SHA256 digest Shopify
// sends alongside webhook bodies.
func VerifyWebhookDigest(body []byte, digest, secret string) error {
	if digest == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(digest), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

func signaturePayload(query url.Values, exclude, separator string) string {
	pairs := make([]string, 0, len(query))
	for key, values := range query {
		if key == exclude {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, separator)
}

func hexDigest(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignProxyQuery computes a valid proxy signature for the given query
// parameters. Exported for tests and local tooling.
func SignProxyQuery(query url.Values, secret string) string {
	return hexDigest(signaturePayload(query, "signature", ""), secret)
}
