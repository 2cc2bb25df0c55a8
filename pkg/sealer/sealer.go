package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Fallback key for local development; production deployments supply their
// own via SLOT_TOKEN_KEY.
const defaultKey = "x1LdvfUz6Iq3QWmkHoLYxz60pR7etDsLloa30xQ9YM0="

// Sealer mints opaque slot tokens so the dialog driver can round-trip a
// slot choice without exposing raw professional ids and timestamps.
type Sealer struct {
	aead cipher.AEAD
}

func New(base64Key string) (*Sealer, error) {
	if base64Key == "" {
		base64Key = defaultKey
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid sealer key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid sealer key: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead}, nil
}

func (s *Sealer) SealSlot(professionalID string, slotStart time.Time) (string, error) {
	plaintext := []byte(professionalID + ":" + strconv.FormatInt(slotStart.Unix(), 10))

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) ParseSlot(token string) (string, time.Time, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid slot token")
	}

	nonceSize := s.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", time.Time{}, fmt.Errorf("invalid slot token")
	}

	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid slot token")
	}

	parts := strings.SplitN(string(pt), ":", 2)
	if len(parts) != 2 {
		return "", time.Time{}, fmt.Errorf("invalid slot token")
	}

	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid slot token")
	}

	return parts[0], time.Unix(unix, 0).UTC(), nil
}
