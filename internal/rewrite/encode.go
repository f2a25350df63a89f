package rewrite

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidToken is returned when a proxy token is not valid base64url.
	ErrInvalidToken = errors.New("invalid proxy token")
	// ErrNotProxied is returned when a path does not carry the proxy prefix.
	ErrNotProxied = errors.New("path is not under the proxy prefix")
)

// Encode returns the unpadded base64url form of the URL's UTF-8 bytes.
func Encode(abs string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(abs))
}

// Decode reverses Encode. Trailing padding is accepted.
func Decode(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(b), nil
}
