package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BackupKeyPrefix is the common prefix of every backup id.
const BackupKeyPrefix = "backup_"

// Backup is an emergency snapshot of content that may never have been durably saved.
type Backup struct {
	CreatedAt  time.Time `json:"created_at"`  // CreatedAt момент снимка
	ExpiresAt  time.Time `json:"expires_at"`  // ExpiresAt CreatedAt + TTL, после него запись недействительна
	ID         string    `json:"id"`          // ID вида backup_{documentId}_{timestampMs}
	DocumentID string    `json:"document_id"` // DocumentID документ, к которому относится снимок
	Content    []byte    `json:"content"`     // Content сериализованный снимок (схема документа неизвестна хранилищу)
}

// IsExpired reports whether the backup is logically invalid at now.
func (b *Backup) IsExpired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// BackupID builds the backup id for a document snapshot taken at createdAt.
func BackupID(documentID string, createdAt time.Time) string {
	return fmt.Sprintf("%s%s_%d", BackupKeyPrefix, documentID, createdAt.UnixMilli())
}

// BackupIDPrefix returns the key prefix shared by all backups of documentID.
func BackupIDPrefix(documentID string) string {
	return BackupKeyPrefix + documentID + "_"
}

// ParseBackupID extracts the snapshot timestamp from a backup id of documentID.
// Returns false if id does not belong to documentID; a document "scene" must not
// match backups of "scene_1", so the remainder after the prefix has to be a number.
func ParseBackupID(documentID, id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, BackupIDPrefix(documentID))
	if !ok || rest == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
