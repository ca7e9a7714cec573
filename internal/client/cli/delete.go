package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/validation"
)

// RunDelete removes a document together with its pending saves and backups.
// Like every write it requires leadership.
func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("%w: draftkeeper delete <document-id>", ErrUsage)
	}
	documentID := args[0]
	if err := validation.ValidateDocumentID(documentID); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	doc, err := c.documents.ReadDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return fmt.Errorf("document not found with ID: %s", documentID)
		}
		return fmt.Errorf("failed to read document %s: %w", documentID, err)
	}

	c.io.Println("About to delete:")
	c.io.Printf("  ID:       %s\n", doc.ID)
	c.io.Printf("  Revision: %d\n", doc.Revision)
	c.io.Printf("  Size:     %d bytes\n", len(doc.Content))
	c.io.Println()

	confirm, err := c.io.ReadInput("Are you sure you want to delete this document? (yes/no): ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if confirm != "yes" && confirm != "y" {
		c.io.Println("Deletion cancelled.")
		return nil
	}

	stop, leader, err := c.startElection(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if !leader {
		return fmt.Errorf("another window is writing, delete %s from there: %w", documentID, save.ErrNotLeader)
	}

	// Отложенное сохранение не должно воскресить удаленный документ
	c.coordinator.CancelPendingSaves(documentID)

	if err := c.documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	if err := c.backups.DeleteBackup(ctx, documentID); err != nil {
		c.logger.Warn("failed to delete backups of removed document", "document_id", documentID, "error", err)
	}

	c.io.Printf("Document %s deleted.\n", documentID)
	return nil
}
