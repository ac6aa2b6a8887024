package booking

import (
	"crypto/rand"
	"fmt"
	"io"
)

// ConfirmationPrefix starts every confirmation code.
const ConfirmationPrefix = "ODH"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 7
)

// NewConfirmationCode returns ODH followed by 7 uppercase alphanumerics
// drawn from crypto/rand.
func NewConfirmationCode() (string, error) {
	return newConfirmationCode(rand.Reader)
}

func newConfirmationCode(r io.Reader) (string, error) {
	buf := make([]byte, codeLength)
	out := make([]byte, 0, len(ConfirmationPrefix)+codeLength)
	out = append(out, ConfirmationPrefix...)
	// 252 is the largest multiple of 36 below 256; rejecting the rest keeps
	// the distribution uniform.
	for len(out) < cap(out) {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == cap(out) {
				break
			}
		}
	}
	return string(out), nil
}

// ValidConfirmationCode reports whether s has the ODH + 7 format.
func ValidConfirmationCode(s string) bool {
	if len(s) != len(ConfirmationPrefix)+codeLength || s[:len(ConfirmationPrefix)] != ConfirmationPrefix {
		return false
	}
	for i := len(ConfirmationPrefix); i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
