package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a login names an unknown account, so
// the response time does not reveal whether the email exists.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z5/6sMZ5dCjkXOmJ4xTHSIeW")

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a hashed password with a plain text password. An
// empty hash always fails but still costs one bcrypt comparison.
func CheckPassword(hashedPassword, password string) bool {
	hash := []byte(hashedPassword)
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
