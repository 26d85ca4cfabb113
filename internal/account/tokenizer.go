package account

import "golang.org/x/crypto/bcrypt"

// Tokenizer is the one-way transform used for passwords and MFA keys. The
// produced token is irreversible; the plaintext can only be checked against
// it, never recovered.
type Tokenizer interface {
	Tokenize(secret string) (string, error)
	Verify(secret, token string) bool
}

type BcryptTokenizer struct {
	Cost int
}

func NewBcryptTokenizer() *BcryptTokenizer {
	return &BcryptTokenizer{Cost: bcrypt.DefaultCost}
}

func (t *BcryptTokenizer) Tokenize(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), t.Cost)
	return string(bytes), err
}

func (t *BcryptTokenizer) Verify(secret, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(token), []byte(secret)) == nil
}
