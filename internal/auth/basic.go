// internal/auth/basic.go
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	ErrHeaderMissing = errors.New("auth: authorization header missing")
	ErrDecode        = errors.New("auth: malformed basic authorization header")
	ErrForbidden     = errors.New("auth: invalid username/password combination")
)

// SecretFunc resolves the expected password. It is only called once the
// header has been found and decoded.
type SecretFunc func(ctx context.Context) (string, error)

// Gate checks inbound basic-auth credentials against a fixed user and a
// resolved secret
type Gate struct {
	user string
}

// NewGate creates a gate for the given administrative user
func NewGate(user string) *Gate {
	return &Gate{user: user}
}

// Authorize validates the raw Authorization header value
func (g *Gate) Authorize(ctx context.Context, header string, secret SecretFunc) error {
	if header == "" {
		return ErrHeaderMissing
	}

	username, password, err := DecodeBasicAuth(header)
	if err != nil {
		return err
	}

	expected, err := secret(ctx)
	if err != nil {
		return fmt.Errorf("auth: resolve secret: %w", err)
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
	if !userOK || !passOK {
		return ErrForbidden
	}
	return nil
}

// DecodeBasicAuth splits "Basic <base64(user:pass)>" into its percent-decoded
// username and password.
func DecodeBasicAuth(header string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) != 2 {
		return "", "", ErrDecode
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "basic") {
		return "", "", ErrDecode
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || !utf8.Valid(raw) {
		return "", "", ErrDecode
	}

	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", ErrDecode
	}

	return unquote(user), unquote(pass), nil
}

// unquote decodes %xx escapes. Invalid escapes stay literal and '+' is not a
// space; decoded bytes that are not UTF-8 become U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// StatusCode maps a gate error to the HTTP status returned to the caller
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrHeaderMissing):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
