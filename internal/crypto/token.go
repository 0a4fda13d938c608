// miIO payload protection: AES-128-CBC keyed from the 16 byte device token
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"mibridge/internal/crypto/hash"
	"strings"
)

// Byte length of every device token
const TokenSize int = 16

var (
	ErrInvalidToken   = errors.New("token must be exactly 16 bytes")
	ErrProtocolDecode = errors.New("decrypted payload is not valid JSON")
)

// Shared secret between a controller and one device
type Token []byte

// Parses the 32 character hex form used by apps and config files
func ParseToken(text string) (token Token, err error) {
	text = strings.TrimSpace(text)
	raw, err := hex.DecodeString(text)
	if err != nil {
		err = fmt.Errorf("failed to decode hex token: %w", err)
		return
	}
	token = Token(raw)
	err = token.Validate()
	return
}

// Fails with ErrInvalidToken unless exactly TokenSize bytes
func (token Token) Validate() (err error) {
	if len(token) != TokenSize {
		err = fmt.Errorf("%w: got %d bytes", ErrInvalidToken, len(token))
	}
	return
}

func (token Token) String() string {
	return hex.EncodeToString(token)
}

// Derives the cipher key and IV.
// key = MD5(token), iv = MD5(key || token)
func Derive(token []byte) (key []byte, iv []byte, err error) {
	err = Token(token).Validate()
	if err != nil {
		return
	}
	key = hash.MD5(token)
	iv = hash.MD5(key, token)
	return
}

// Overwrites slice contents with zeroes in place
func Memzero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
