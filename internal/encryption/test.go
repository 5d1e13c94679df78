package encryption

import (
	"bytes"
	"fmt"
)

// testHeader marks payloads sealed by TestEncryptor.
var testHeader = []byte("PTENC\x00\x00\x00")

// TestEncryptor is a deterministic, reversible stand-in for AgeEncryptor. It
// prepends a fixed header on encrypt and strips it on decrypt.
type TestEncryptor struct{}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error { return nil }

func (e *TestEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(testHeader)+len(plaintext))
	out = append(out, testHeader...)
	return append(out, plaintext...), nil
}

func (e *TestEncryptor) Unlock(string) (DecryptionContext, error) {
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

func (TestDecryptionContext) Decrypt(ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, testHeader) {
		return nil, fmt.Errorf("missing test encryption header")
	}
	return append([]byte{}, ciphertext[len(testHeader):]...), nil
}
