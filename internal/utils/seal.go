package utils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

const sealKeyBits = 2048

// Sealer signs document digests with the server's RSA key
type Sealer struct {
	key *rsa.PrivateKey
}

// NewSealer wraps an existing key
func NewSealer(key *rsa.PrivateKey) *Sealer {
	return &Sealer{key: key}
}

// LoadOrGenerateSealer reads a PEM RSA key, generating and persisting one when the file is missing
func LoadOrGenerateSealer(path string) (*Sealer, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seal key: %w", err)
		}
		return &Sealer{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read seal key: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, sealKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate seal key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(path, block, 0600); err != nil {
		return nil, fmt.Errorf("failed to save seal key: %w", err)
	}

	return &Sealer{key: key}, nil
}

// Digest returns the hex SHA-256 of content
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Sign returns a base64 PKCS#1 v1.5 signature over the SHA-256 of content
func (s *Sealer) Sign(content []byte) (string, error) {
	hash := sha256.Sum256(content)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a signature produced by Sign
func (s *Sealer) Verify(content []byte, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	hash := sha256.Sum256(content)
	if err := rsa.VerifyPKCS1v15(&s.key.PublicKey, crypto.SHA256, hash[:], sig); err != nil {
		return fmt.Errorf("error verifying signature: %w", err)
	}
	return nil
}

// PublicKeyPEM exports the public half so third parties can check seals offline
func (s *Sealer) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
