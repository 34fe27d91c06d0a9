// Package signature computes and verifies the keyed message signatures used
// by the EO membership API.
//
// A signature is the standard base64 encoding of HMAC-MD5(key, message),
// where key is the raw binary form of a base64-encoded shared secret.
// The same codec authenticates outbound calls (the message is the full
// request URL) and verifies inbound callbacks (the message is the claimed
// user name followed by the received token).
package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey indicates the shared secret is not valid base64 or is empty.
var ErrInvalidKey = errors.New("signature: invalid secret key")

// DecodeKey decodes a base64-encoded shared secret into raw key bytes. The
// trailing "=" padding is optional.
func DecodeKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidKey)
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		var rawErr error
		key, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(secret, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: secret decodes to zero bytes", ErrInvalidKey)
	}
	return key, nil
}

// Sign returns the base64-encoded HMAC-MD5 digest of message under key.
func Sign(key []byte, message string) string {
	mac := hmac.New(md5.New, key)
	mac.Write([]byte(message))
	return strings.TrimSpace(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// Verify reports whether sig is the signature of message under key.
func Verify(key []byte, message, sig string) bool {
	expected := Sign(key, message)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Signer signs messages with a decoded shared secret. It is immutable and
// safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner decodes secret once so that a malformed key is reported when the
// signer is built rather than on first use.
func NewSigner(secret string) (*Signer, error) {
	key, err := DecodeKey(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Sign returns the signature of message.
func (s *Signer) Sign(message string) string {
	return Sign(s.key, message)
}

// Verify reports whether sig is the signature of message.
func (s *Signer) Verify(message, sig string) bool {
	return Verify(s.key, message, sig)
}
