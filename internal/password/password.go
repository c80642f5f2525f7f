// Package password wraps bcrypt hashing of user credentials.
package password

import "golang.org/x/crypto/bcrypt"

const cost = 12

// Hash returns a bcrypt hash of the password. The salt is random per call,
// so two hashes of the same password differ.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether password matches hash. A malformed hash is treated
// as a mismatch, never an error.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
