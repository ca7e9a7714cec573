package cli

import (
	"context"
	"fmt"
)

// RunCleanup purges expired emergency backups
func (c *Cli) RunCleanup(ctx context.Context) error {
	removed, err := c.backups.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up backups: %w", err)
	}

	c.io.Printf("Removed %d expired backup(s).\n", removed)
	return nil
}
