package commit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Signer produces detached armored OpenPGP signatures with the run's
// private key.
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner parses an armored private key and decrypts it with passphrase.
// The passphrase is ignored when the key is not encrypted.
func NewSigner(armoredKey, passphrase string) (*Signer, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	if len(entities) == 0 {
		return nil, errors.New("signing key ring is empty")
	}

	entity := entities[0]
	if entity.PrivateKey == nil {
		return nil, errors.New("signing key has no private part")
	}

	if entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, fmt.Errorf("decrypt signing key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("decrypt signing subkey: %w", err)
			}
		}
	}

	return &Signer{entity: entity}, nil
}

// DetachSign returns an armored detached signature over data.
func (s *Signer) DetachSign(data []byte) (string, error) {
	var out bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&out, s.entity, bytes.NewReader(data), nil); err != nil {
		return "", fmt.Errorf("detach sign: %w", err)
	}
	return out.String(), nil
}

// Keyring exposes the public half for signature verification.
func (s *Signer) Keyring() openpgp.EntityList {
	return openpgp.EntityList{s.entity}
}
