package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/crypto"
)

// Имена значений в хранилище метаданных
const (
	metaSalt        = "backup_salt"
	metaFingerprint = "backup_key_fingerprint"
)

// ErrWrongPassphrase is returned when the passphrase does not match the one
// the existing backups were sealed with
var ErrWrongPassphrase = errors.New("wrong backup passphrase")

// NewSealer derives the backup key from passphrase and returns a Sealer for it.
// The first call generates the salt and remembers the key fingerprint in meta;
// later calls must present the same passphrase.
func NewSealer(ctx context.Context, meta storage.MetadataStore, passphrase string) (*crypto.Sealer, error) {
	salt, err := meta.GetMeta(ctx, metaSalt)
	switch {
	case errors.Is(err, storage.ErrMetadataNotFound):
		return initSealer(ctx, meta, passphrase)
	case err != nil:
		return nil, fmt.Errorf("failed to load backup salt: %w", err)
	}

	key, err := crypto.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive backup key: %w", err)
	}

	fingerprint, err := meta.GetMeta(ctx, metaFingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup key fingerprint: %w", err)
	}
	if err := crypto.VerifyKey(key, string(fingerprint)); err != nil {
		if errors.Is(err, crypto.ErrKeyMismatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("failed to verify backup key: %w", err)
	}

	return crypto.NewSealer(key)
}

func initSealer(ctx context.Context, meta storage.MetadataStore, passphrase string) (*crypto.Sealer, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive backup key: %w", err)
	}

	fingerprint, err := crypto.Fingerprint(key)
	if err != nil {
		return nil, err
	}

	// Сначала отпечаток, потом соль: соль без отпечатка означала бы ключ без проверки
	if err := meta.PutMeta(ctx, metaFingerprint, []byte(fingerprint)); err != nil {
		return nil, fmt.Errorf("failed to store backup key fingerprint: %w", err)
	}
	if err := meta.PutMeta(ctx, metaSalt, salt); err != nil {
		return nil, fmt.Errorf("failed to store backup salt: %w", err)
	}

	return crypto.NewSealer(key)
}
