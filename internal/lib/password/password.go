package password

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when a user does not exist, so a lookup for
// an unknown username costs about as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

func Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Verify reports whether password matches hash. A nil hash stands for a
// missing user and always fails after doing the same amount of work.
func Verify(hash []byte, password string) bool {
	if hash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
