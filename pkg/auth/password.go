package auth

import (
	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordEntropy rejects trivially guessable passwords at registration.
const minPasswordEntropy = 50

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength returns a descriptive error for weak passwords.
func ValidatePasswordStrength(password string) error {
	return passwordvalidator.Validate(password, minPasswordEntropy)
}
