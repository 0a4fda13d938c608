package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Encrypts plaintext with PKCS#7 padding using token derived key material
func Encrypt(plaintext []byte, token []byte) (ciphertext []byte, err error) {
	key, iv, err := Derive(token)
	if err != nil {
		return
	}
	defer Memzero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		err = fmt.Errorf("failed to create cipher: %w", err)
		return
	}

	padded := pad(plaintext, block.BlockSize())
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return
}

// Decrypts and removes PKCS#7 padding
func Decrypt(ciphertext []byte, token []byte) (plaintext []byte, err error) {
	key, iv, err := Derive(token)
	if err != nil {
		return
	}
	defer Memzero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		err = fmt.Errorf("failed to create cipher: %w", err)
		return
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		err = fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
		return
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err = unpad(padded, block.BlockSize())
	return
}

func pad(data []byte, blockSize int) (padded []byte) {
	count := blockSize - len(data)%blockSize
	padded = make([]byte, len(data), len(data)+count)
	copy(padded, data)
	padded = append(padded, bytes.Repeat([]byte{byte(count)}, count)...)
	return
}

func unpad(data []byte, blockSize int) (unpadded []byte, err error) {
	if len(data) == 0 {
		err = fmt.Errorf("empty padded input")
		return
	}
	count := int(data[len(data)-1])
	if count == 0 || count > blockSize || count > len(data) {
		err = fmt.Errorf("invalid padding length %d", count)
		return
	}
	for _, b := range data[len(data)-count:] {
		if int(b) != count {
			err = fmt.Errorf("invalid padding byte 0x%02x", b)
			return
		}
	}
	unpadded = data[:len(data)-count]
	return
}
