package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/session"
	"github.com/iudanet/draftkeeper/internal/validation"
)

// RunRecover shows the emergency backup of a document, or restores (-restore) or
// deletes (-dismiss) it.
func (c *Cli) RunRecover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	restore := fs.Bool("restore", false, "write the backup over the document")
	dismiss := fs.Bool("dismiss", false, "delete the backup")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" || (*restore && *dismiss) {
		return fmt.Errorf("%w: draftkeeper recover [-restore|-dismiss] <document-id>", ErrUsage)
	}
	documentID := fs.Arg(0)
	if err := validation.ValidateDocumentID(documentID); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	rec, ok := c.backups.GetBackup(ctx, documentID)
	if !ok {
		c.io.Printf("No backup found for %s.\n", documentID)
		return nil
	}

	switch {
	case *dismiss:
		if err := c.backups.DeleteBackup(ctx, documentID); err != nil {
			return fmt.Errorf("failed to delete backup: %w", err)
		}
		c.io.Printf("Backup of %s deleted.\n", documentID)
		return nil

	case *restore:
		return c.restore(ctx, documentID)
	}

	c.io.Printf("=== Backup of %s ===\n", documentID)
	c.io.Printf("Created: %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
	c.io.Printf("Expires: %s\n", rec.ExpiresAt.Local().Format(time.RFC3339))
	c.io.Println()
	c.io.Println(string(rec.Content))
	return nil
}

// restore writes the backup through a session so the write obeys leadership
func (c *Cli) restore(ctx context.Context, documentID string) error {
	stop, leader, err := c.startElection(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if !leader {
		return fmt.Errorf("another window is writing %s, restore from there: %w", documentID, save.ErrNotLeader)
	}

	buf := &buffer{}
	sess, err := c.openSession(documentID, buf.content)
	if err != nil {
		return err
	}

	restoreErr := sess.RestoreBackup(ctx, buf.replace)
	if err := sess.Destroy(ctx); err != nil && restoreErr == nil {
		restoreErr = err
	}
	if errors.Is(restoreErr, session.ErrNoBackup) {
		c.io.Printf("No backup found for %s.\n", documentID)
		return nil
	}
	if restoreErr != nil {
		return fmt.Errorf("failed to restore %s: %w", documentID, restoreErr)
	}

	c.io.Printf("Backup of %s restored.\n", documentID)
	return nil
}
