// Package crypto holds the symmetric encryption and token primitives shared
// by the field codec and the auth service.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const storedSeparator = ":"

// DeriveKey turns an arbitrary-length secret into a 32-byte AES-256 key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt returns "ivHex:cipherHex" for the given plaintext, using AES-CBC
// with PKCS#7 padding and a fresh random IV per call.
func Encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + storedSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Wrong key, corrupt data, and malformed input all
// surface as an error; callers that must not crash the read path map it to
// an absent value.
func Decrypt(key []byte, stored string) (string, error) {
	ivHex, cipherHex, ok := strings.Cut(stored, storedSeparator)
	if !ok {
		return "", fmt.Errorf("stored value is not iv%sciphertext", storedSeparator)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("decode iv: invalid")
	}

	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

// NewOpaqueToken returns nBytes of crypto/rand entropy, URL-safe base64
// without padding. Values below 32 bytes are bumped up.
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes < 32 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashTokenHex returns the sha256 hex digest used to index opaque tokens at
// rest without storing the usable value.
func HashTokenHex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}

	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}

	return data[:len(data)-padding], nil
}
