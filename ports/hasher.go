package ports

// Hasher is a one-way, internally salted password hash
type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) bool
}
