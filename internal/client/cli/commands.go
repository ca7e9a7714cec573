package cli

import (
	"context"
	"fmt"
)

// Run executes command with its arguments
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "edit":
		return c.RunEdit(ctx, args)
	case "show":
		return c.RunShow(ctx, args)
	case "list":
		return c.RunList(ctx)
	case "recover":
		return c.RunRecover(ctx, args)
	case "delete":
		return c.RunDelete(ctx, args)
	case "cleanup":
		return c.RunCleanup(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}
