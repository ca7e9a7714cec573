package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/draftkeeper/internal/validation"
)

// RunShow prints a document and mentions a newer emergency backup if there is one
func (c *Cli) RunShow(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("%w: draftkeeper show <document-id>", ErrUsage)
	}
	documentID := args[0]
	if err := validation.ValidateDocumentID(documentID); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	doc, err := c.documents.ReadDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", documentID, err)
	}

	c.io.Printf("=== %s ===\n", doc.ID)
	c.io.Printf("Revision: %d\n", doc.Revision)
	c.io.Printf("Updated:  %s\n", doc.UpdatedAt.Local().Format(time.RFC3339))
	c.io.Println()
	c.io.Println(string(doc.Content))

	if rec, ok := c.backups.GetBackup(ctx, documentID); ok && rec.CreatedAt.After(doc.UpdatedAt) {
		c.io.Println()
		c.io.Printf("⚠️  A newer unsaved version from %s exists. Run 'draftkeeper recover %s'.\n",
			rec.CreatedAt.Local().Format(time.RFC3339), documentID)
	}

	return nil
}

// RunList prints all documents, most recently updated first
func (c *Cli) RunList(ctx context.Context) error {
	docs, err := c.documents.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	c.io.Println("=== Documents ===")
	c.io.Println()

	if len(docs) == 0 {
		c.io.Println("No documents found.")
		return nil
	}

	for _, doc := range docs {
		c.io.Printf("%-32s rev %-5d %s\n", doc.ID, doc.Revision, doc.UpdatedAt.Local().Format(time.RFC3339))
	}
	c.io.Println()
	c.io.Printf("Total: %d document(s)\n", len(docs))
	return nil
}
