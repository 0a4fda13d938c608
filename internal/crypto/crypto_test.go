package crypto

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"strings"
	"testing"
)

var testToken = Token([]byte("0123456789abcdef"))

func TestParseToken(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError error
	}{
		{
			name:  "valid hex token",
			input: "30313233343536373839616263646566",
		},
		{
			name:  "surrounding whitespace",
			input: " 30313233343536373839616263646566\n",
		},
		{
			name:        "too short",
			input:       "3031323334",
			expectError: ErrInvalidToken,
		},
		{
			name:        "too long",
			input:       "3031323334353637383961626364656667",
			expectError: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ParseToken(tt.input)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(token, testToken) {
				t.Fatalf("expected %x, got %x", []byte(testToken), []byte(token))
			}
			if token.String() != "30313233343536373839616263646566" {
				t.Fatalf("unexpected string form %s", token)
			}
		})
	}

	_, err := ParseToken("not-hex")
	if err == nil {
		t.Fatalf("expected error for non hex token")
	}
}

func TestDerive(t *testing.T) {
	key, iv, err := Derive(testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectKey := md5.Sum(testToken)
	if !bytes.Equal(key, expectKey[:]) {
		t.Fatalf("key mismatch: %x", key)
	}
	expectIV := md5.Sum(append(append([]byte(nil), expectKey[:]...), testToken...))
	if !bytes.Equal(iv, expectIV[:]) {
		t.Fatalf("iv mismatch: %x", iv)
	}
}

func TestInvalidTokenLengths(t *testing.T) {
	tokens := [][]byte{nil, {}, make([]byte, 15), make([]byte, 17), make([]byte, 32)}
	for _, token := range tokens {
		if _, err := Encrypt([]byte("x"), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("encrypt with %d byte token: expected ErrInvalidToken, got %v", len(token), err)
		}
		if _, err := Decrypt(make([]byte, 16), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("decrypt with %d byte token: expected ErrInvalidToken, got %v", len(token), err)
		}
		if _, err := EncodePayload(map[string]int{"id": 1}, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("encode with %d byte token: expected ErrInvalidToken, got %v", len(token), err)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "empty", plaintext: []byte{}},
		{name: "one byte", plaintext: []byte{0}},
		{name: "fifteen bytes", plaintext: bytes.Repeat([]byte{'a'}, 15)},
		{name: "block aligned", plaintext: bytes.Repeat([]byte{'b'}, 32)},
		{name: "json", plaintext: []byte(`{"id":1,"method":"get_prop","params":["power"]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(tt.plaintext, testToken)
			if err != nil {
				t.Fatalf("unexpected encrypt error: %v", err)
			}
			if len(ciphertext)%16 != 0 || len(ciphertext) <= len(tt.plaintext) {
				t.Fatalf("unexpected ciphertext length %d for %d plaintext bytes", len(ciphertext), len(tt.plaintext))
			}

			plaintext, err := Decrypt(ciphertext, testToken)
			if err != nil {
				t.Fatalf("unexpected decrypt error: %v", err)
			}
			if !bytes.Equal(plaintext, tt.plaintext) {
				t.Fatalf("expected %q, got %q", tt.plaintext, plaintext)
			}
		})
	}
}

func TestDecryptRejectsMalformed(t *testing.T) {
	if _, err := Decrypt(make([]byte, 15), testToken); err == nil {
		t.Fatalf("expected error for unaligned ciphertext")
	}
	if _, err := Decrypt(nil, testToken); err == nil {
		t.Fatalf("expected error for empty ciphertext")
	}

	other := Token([]byte("fedcba9876543210"))
	ciphertext, err := Encrypt([]byte("payload"), testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Wrong key almost always yields bad padding, never the original text
	plaintext, err := Decrypt(ciphertext, other)
	if err == nil && bytes.Equal(plaintext, []byte("payload")) {
		t.Fatalf("decrypting with a different token returned the plaintext")
	}
}

func TestPadding(t *testing.T) {
	for n := 0; n <= 33; n++ {
		padded := pad(bytes.Repeat([]byte{1}, n), 16)
		if len(padded)%16 != 0 {
			t.Fatalf("length %d: padded to %d", n, len(padded))
		}
		count := int(padded[len(padded)-1])
		if count < 1 || count > 16 {
			t.Fatalf("length %d: bad pad count %d", n, count)
		}
		unpadded, err := unpad(padded, 16)
		if err != nil || len(unpadded) != n {
			t.Fatalf("length %d: unpad returned %d bytes, err %v", n, len(unpadded), err)
		}
	}

	if _, err := unpad([]byte{1, 2, 3, 0}, 16); err == nil {
		t.Fatalf("expected error on zero pad byte")
	}
	if _, err := unpad([]byte{1, 2, 2, 3}, 16); err == nil {
		t.Fatalf("expected error on inconsistent pad bytes")
	}
}

func TestEncodePayloadAppendsNUL(t *testing.T) {
	ciphertext, err := EncodePayload(map[string]any{"id": 7, "method": "set_power", "params": []string{"on"}}, testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := Decrypt(ciphertext, testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expect := `{"id":7,"method":"set_power","params":["on"]}` + "\x00"
	if string(raw) != expect {
		t.Fatalf("expected %q, got %q", expect, raw)
	}
}

func TestDecodePayloadRecovery(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		expectValid    bool
		expectRecovery string
		expectJSON     string
	}{
		{
			name:           "clean payload",
			raw:            `{"id":1,"result":["ok"]}` + "\x00",
			expectValid:    true,
			expectRecovery: "none",
			expectJSON:     `{"id":1,"result":["ok"]}`,
		},
		{
			name:           "several trailing NULs",
			raw:            `{"id":1,"result":[]}` + "\x00\x00\x00",
			expectValid:    true,
			expectRecovery: "none",
			expectJSON:     `{"id":1,"result":[]}`,
		},
		{
			name:           "double comma before otu_stat",
			raw:            `{"id":2,"result":{"model":"x",,"otu_stat":[0]}}`,
			expectValid:    true,
			expectRecovery: "double-comma",
			expectJSON:     `{"id":2,"result":{"model":"x","otu_stat":[0]}}`,
		},
		{
			name:           "garbage after embedded NUL",
			raw:            `{"id":3,"result":["ok"]}` + "\x00garbage",
			expectValid:    true,
			expectRecovery: "embedded-nul",
			expectJSON:     `{"id":3,"result":["ok"]}`,
		},
		{
			name:        "unrecoverable text",
			raw:         "not json at all",
			expectValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			defer close(done)
			ctx := logctx.New(context.Background(), global.NSTest, global.VerbosityStandard, done)

			ciphertext, err := Encrypt([]byte(tt.raw), testToken)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			plain, err := DecodePayload(ctx, ciphertext, testToken)
			if err != nil {
				t.Fatalf("decode must not fail on content: %v", err)
			}
			if plain.Valid() != tt.expectValid {
				t.Fatalf("expected valid=%v, got %v (%q)", tt.expectValid, plain.Valid(), plain.Raw)
			}

			if !tt.expectValid {
				if string(plain.Raw) != tt.raw {
					t.Fatalf("expected raw text back, got %q", plain.Raw)
				}
				var v any
				if err := plain.Unmarshal(&v); !errors.Is(err, ErrProtocolDecode) {
					t.Fatalf("expected ErrProtocolDecode, got %v", err)
				}
				events := logctx.GetLogger(ctx).Pending()
				if len(events) == 0 || !strings.Contains(events[0].Message, "unable to parse") {
					t.Fatalf("expected decode warning, got %+v", events)
				}
				return
			}

			if plain.Recovery != tt.expectRecovery {
				t.Fatalf("expected recovery %q, got %q", tt.expectRecovery, plain.Recovery)
			}
			if string(plain.JSON) != tt.expectJSON {
				t.Fatalf("expected %s, got %s", tt.expectJSON, plain.JSON)
			}
		})
	}
}

func TestDecodePayloadUndecryptable(t *testing.T) {
	ciphertext, err := Encrypt([]byte(`{"id":1,"result":["ok"]}`), testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		ciphertext []byte
		token      Token
		expectRaw  bool
	}{
		{name: "foreign token", ciphertext: ciphertext, token: Token([]byte("fedcba9876543210"))},
		{name: "unaligned length", ciphertext: bytes.Repeat([]byte{0xab}, 17), token: testToken, expectRaw: true},
		{name: "empty", ciphertext: []byte{}, token: testToken, expectRaw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			defer close(done)
			ctx := logctx.New(context.Background(), global.NSTest, global.VerbosityStandard, done)

			plain, err := DecodePayload(ctx, tt.ciphertext, tt.token)
			if err != nil {
				t.Fatalf("expected raw bytes instead of an error, got %v", err)
			}
			if plain.Valid() {
				t.Fatalf("expected no JSON, got %s", plain.JSON)
			}
			if tt.expectRaw && !bytes.Equal(plain.Raw, tt.ciphertext) {
				t.Fatalf("expected ciphertext back, got %x", plain.Raw)
			}
			var v any
			if err := plain.Unmarshal(&v); !errors.Is(err, ErrProtocolDecode) {
				t.Fatalf("expected ErrProtocolDecode, got %v", err)
			}
			if len(logctx.GetLogger(ctx).Pending()) == 0 {
				t.Fatalf("expected a warning to be logged")
			}
		})
	}

	if _, err := DecodePayload(context.Background(), ciphertext, Token(make([]byte, 8))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a short token, got %v", err)
	}
}

func TestRecoveryChainOrder(t *testing.T) {
	names := make([]string, 0, len(RecoveryChain))
	for _, step := range RecoveryChain {
		names = append(names, step.Name)
	}
	if strings.Join(names, ",") != "none,double-comma,embedded-nul" {
		t.Fatalf("unexpected chain order %v", names)
	}
}

func TestMemzero(t *testing.T) {
	inputs := [][]byte{nil, {}, {1}, {1, 2, 3, 4, 5}, bytes.Repeat([]byte{9}, 1024)}
	for _, input := range inputs {
		Memzero(input)
		for i, b := range input {
			if b != 0 {
				t.Fatalf("byte %d not zeroed", i)
			}
		}
	}
}
