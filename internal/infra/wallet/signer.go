package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

const (
	HeaderAccessKey = "X-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// Signer authenticates internal wallet calls with HMAC-SHA256.
type Signer struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

// NewSigner creates a new Signer instance
func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		now:       time.Now,
	}
}

// GenerateHeaders signs timestamp + method + path + body.
// timestamp is Unix milliseconds; path has no host.
func (s *Signer) GenerateHeaders(method, path, body string) map[string]string {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	return map[string]string{
		HeaderAccessKey: s.accessKey,
		HeaderSignature: computeHmacSha256(timestamp+method+path+body, s.secretKey),
		HeaderTimestamp: timestamp,
		"Content-Type":  "application/json",
	}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
