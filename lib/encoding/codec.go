// Package encoding provides the snapshot codec used to persist fridge
// entries across application restarts.
//
// Snapshots are msgpack maps in one of two modes:
//   - Signed (default): base64 + HMAC signature, readable but tamper-proof
//   - Sealed: AES-256-GCM, fully opaque
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Decode.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid snapshot format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: snapshot decryption failed")
)

// Codec signs or seals snapshots with a single key.
type Codec struct {
	key []byte
	gcm cipher.AEAD
}

// NewCodec creates a codec. Keys shorter than 32 bytes are stretched with
// SHA-256 so any secret can be used.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{key: key, gcm: gcm}, nil
}

// Encode packs entries and returns the signed or sealed string.
func (c *Codec) Encode(entries map[string]any, sealed bool) (string, error) {
	if entries == nil {
		entries = map[string]any{}
	}
	packed, err := msgpack.Marshal(entries)
	if err != nil {
		return "", err
	}

	if sealed {
		return c.seal(packed)
	}
	return c.sign(packed), nil
}

// Decode verifies (or opens) a snapshot and unpacks its entries.
// Integers come back as int64 and floats as float64 regardless of the
// width they were packed with.
func (c *Codec) Decode(encoded string, sealed bool) (map[string]any, error) {
	var packed []byte
	var err error

	if sealed {
		packed, err = c.open(encoded)
	} else {
		packed, err = c.verify(encoded)
	}
	if err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(packed))
	dec.UseLooseInterfaceDecoding(true)

	var entries map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, ErrInvalidFormat
	}
	if entries == nil {
		entries = map[string]any{}
	}
	for k, v := range entries {
		entries[k] = normalize(v)
	}
	return entries, nil
}

// normalize folds unsigned integers that fit into int64 so callers see one
// integer type.
func normalize(v any) any {
	switch t := v.(type) {
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
	}
	return v
}

// sign creates base64.signature
func (c *Codec) sign(data []byte) string {
	b64 := base64.RawURLEncoding.EncodeToString(data)
	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
	return b64 + "." + sig
}

func (c *Codec) verify(encoded string) ([]byte, error) {
	parts := strings.SplitN(encoded, ".", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidFormat
	}

	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidFormat
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)[:16]) {
		return nil, ErrSignatureInvalid
	}

	return data, nil
}

func (c *Codec) seal(data []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := c.gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

func (c *Codec) open(encoded string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	if len(ciphertext) < c.gcm.NonceSize() {
		return nil, ErrInvalidFormat
	}

	nonce := ciphertext[:c.gcm.NonceSize()]
	plain, err := c.gcm.Open(nil, nonce, ciphertext[c.gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
