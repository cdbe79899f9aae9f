package storage

import (
	"fmt"

	"github.com/Muhametii00/calendar/internal/util"
)

// Envelope is a sealed record containing AES-256-GCM encrypted data.
// The AAD used at sealing time must be presented again to open it, so a
// record copied under a different scope or ID fails to decrypt.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const envelopeScheme = "aes256gcm"

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	sealed, err := util.SealAES(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.SealAES returns nonce || ciphertext.
	return &Envelope{
		Ver:        1,
		Scheme:     envelopeScheme,
		Nonce:      sealed[:12],
		Ciphertext: sealed[12:],
	}, nil
}

// OpenRecord decrypts an Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != envelopeScheme {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	sealed := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(sealed, envelope.Nonce)
	copy(sealed[len(envelope.Nonce):], envelope.Ciphertext)

	return util.OpenAES(sealed, recordKey, aad)
}
