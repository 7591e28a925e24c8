package blobstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signature errors.
var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrSignatureExpired = errors.New("signature expired")
)

// Signer issues and verifies expiring object URLs.
type Signer struct {
	key     []byte
	baseURL string
	now     func() time.Time
}

// NewSigner returns a signer producing URLs under baseURL.
func NewSigner(key, baseURL string) (*Signer, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("blobstore: signing key required")
	}
	return &Signer{
		key:     []byte(key),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// WithClock overrides the time source (for tests).
func (s *Signer) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SignedURL is an object URL with its expiry.
type SignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sign returns a URL allowing method on key until now+ttl. filename, when
// set, becomes the download's Content-Disposition name.
func (s *Signer) Sign(method, key string, ttl time.Duration, filename string) (SignedURL, error) {
	if err := ValidateKey(key); err != nil {
		return SignedURL{}, err
	}
	method = strings.ToUpper(method)
	expires := s.now().Add(ttl).UTC().Truncate(time.Second)
	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	query.Set("sig", s.mac(method, key, expires.Unix(), filename))
	if filename != "" {
		query.Set("filename", filename)
	}
	escaped := (&url.URL{Path: key}).EscapedPath()
	return SignedURL{
		URL:       fmt.Sprintf("%s/objects/%s?%s", s.baseURL, escaped, query.Encode()),
		Method:    method,
		ExpiresAt: expires,
	}, nil
}

// Verify checks a signature presented for method on key.
func (s *Signer) Verify(method, key, expires, sig, filename string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	want := s.mac(strings.ToUpper(method), key, unix, filename)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > unix {
		return ErrSignatureExpired
	}
	return nil
}

func (s *Signer) mac(method, key string, expires int64, filename string) string {
	h := hmac.New(sha256.New, s.key)
	fmt.Fprintf(h, "%s\n%s\n%d\n%s", method, key, expires, filename)
	return hex.EncodeToString(h.Sum(nil))
}
