package liblib

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"imageservice/internal/domain"
)

// Signature is the per-request authentication material. Each HTTP call gets
// a fresh one.
type Signature struct {
	AccessKey string
	Signature string
	Timestamp string
	Nonce     string
}

// Query returns the signature as the query parameters the API expects.
func (s Signature) Query() url.Values {
	return url.Values{
		"AccessKey":      {s.AccessKey},
		"Signature":      {s.Signature},
		"Timestamp":      {s.Timestamp},
		"SignatureNonce": {s.Nonce},
	}
}

// Signer computes HMAC-SHA1 request signatures.
type Signer struct {
	accessKey string
	secretKey string
	now       func() time.Time
	nonce     func() string
}

// NewSigner builds a signer for the given key pair.
func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{
		accessKey: strings.TrimSpace(accessKey),
		secretKey: strings.TrimSpace(secretKey),
		now:       time.Now,
		nonce:     uuid.NewString,
	}
}

// HasCredentials reports whether both keys are configured.
func (s *Signer) HasCredentials() bool {
	return s.accessKey != "" && s.secretKey != ""
}

// Sign signs resourcePath, the request path without host or query. The
// content is "path&timestampMillis&nonce", keyed by the secret and encoded
// as unpadded URL-safe base64.
func (s *Signer) Sign(resourcePath string) (Signature, error) {
	if !s.HasCredentials() {
		return Signature{}, &domain.Error{
			Kind:     domain.ErrMissingCredentials,
			Provider: Name,
			Message:  "LIBLIBAI_ACCESS_KEY and LIBLIBAI_SECRET_KEY must be set",
		}
	}
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	nonce := s.nonce()
	content := strings.Join([]string{resourcePath, timestamp, nonce}, "&")

	mac := hmac.New(sha1.New, []byte(s.secretKey))
	mac.Write([]byte(content))

	return Signature{
		AccessKey: s.accessKey,
		Signature: base64.RawURLEncoding.EncodeToString(mac.Sum(nil)),
		Timestamp: timestamp,
		Nonce:     nonce,
	}, nil
}
