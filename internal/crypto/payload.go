package crypto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
)

// Decrypted payload with the recovery step that made it parse
type Plaintext struct {
	Raw      []byte          // Decrypted bytes, trailing NULs removed
	JSON     json.RawMessage // Nil when every recovery step failed
	Recovery string          // Name of the recovery step that succeeded
}

// True when some recovery step produced valid JSON
func (plain Plaintext) Valid() bool {
	return plain.JSON != nil
}

// Decodes the recovered JSON into value
func (plain Plaintext) Unmarshal(value any) (err error) {
	if !plain.Valid() {
		err = fmt.Errorf("%w: %q", ErrProtocolDecode, plain.Raw)
		return
	}
	err = json.Unmarshal(plain.JSON, value)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProtocolDecode, err)
	}
	return
}

// Serializes value to JSON, appends the NUL terminator devices expect, and encrypts
func EncodePayload(value any, token []byte) (ciphertext []byte, err error) {
	err = Token(token).Validate()
	if err != nil {
		return
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	err = encoder.Encode(value)
	if err != nil {
		err = fmt.Errorf("failed to serialize payload: %w", err)
		return
	}

	text := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	text = append(text, 0)

	ciphertext, err = Encrypt(text, token)
	return
}

// Decrypts ciphertext and runs the recovery chain until one step yields valid JSON.
// Undecryptable or undecodable payloads are logged and returned raw, not as an error.
// Only a malformed token is an error.
func DecodePayload(ctx context.Context, ciphertext []byte, token []byte) (plain Plaintext, err error) {
	err = Token(token).Validate()
	if err != nil {
		return
	}

	decrypted, decryptErr := Decrypt(ciphertext, token)
	if decryptErr != nil {
		ctx = logctx.AppendCtxTag(ctx, global.NSCrypto)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"unable to decrypt %d byte payload: %v\n", len(ciphertext), decryptErr)
		plain.Raw = bytes.Clone(ciphertext)
		return
	}
	plain.Raw = bytes.TrimRight(decrypted, "\x00")

	for _, step := range RecoveryChain {
		candidate := step.Apply(plain.Raw)
		if json.Valid(candidate) {
			plain.JSON = json.RawMessage(candidate)
			plain.Recovery = step.Name
			break
		}
	}

	if !plain.Valid() {
		ctx = logctx.AppendCtxTag(ctx, global.NSCrypto)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"unable to parse decrypted payload as JSON: %q\n", plain.Raw)
	} else if plain.Recovery != RecoveryChain[0].Name {
		ctx = logctx.AppendCtxTag(ctx, global.NSCrypto)
		logctx.LogEvent(ctx, global.VerbosityDebug, global.InfoLog,
			"payload parsed after recovery step %q\n", plain.Recovery)
	}
	return
}
