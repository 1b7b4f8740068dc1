package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/oauth2"
)

// VerifierLength is the length of generated code verifiers.
const VerifierLength = 64

const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// PKCE is a code verifier and its S256 challenge. It lives for one login attempt.
type PKCE struct {
	Verifier  string
	Challenge string
}

// NewPKCE generates a fresh verifier and derives its challenge.
func NewPKCE() (PKCE, error) {
	v, err := GenerateVerifier()
	if err != nil {
		return PKCE{}, err
	}
	return PKCE{Verifier: v, Challenge: Challenge(v)}, nil
}

// GenerateVerifier returns [VerifierLength] random characters from the unreserved set.
//
// Bytes at or above the largest multiple of the charset size are discarded so every character
// is equally likely.
func GenerateVerifier() (string, error) {
	const limit = 256 - 256%len(verifierCharset)

	out := make([]byte, 0, VerifierLength)
	buf := make([]byte, VerifierLength)
	for len(out) < VerifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, verifierCharset[int(b)%len(verifierCharset)])
			if len(out) == VerifierLength {
				break
			}
		}
	}
	return string(out), nil
}

// Challenge returns base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
