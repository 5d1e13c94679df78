// Package encryption seals blob payloads at rest.
package encryption

// Encryptor encrypts payloads for the configured recipient. Encrypting only
// needs the public half of the key pair; decrypting requires Unlock.
type Encryptor interface {
	// Setup generates and stores a new key pair protected by passphrase.
	Setup(passphrase string) error

	// Encrypt returns the ciphertext for plaintext.
	Encrypt(plaintext []byte) ([]byte, error)

	// Unlock returns a context able to decrypt payloads.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key.
type DecryptionContext interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}
