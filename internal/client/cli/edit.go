package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/draftkeeper/internal/client/session"
	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/models"
	"github.com/iudanet/draftkeeper/internal/ratelimit"
	"github.com/iudanet/draftkeeper/internal/validation"
	"github.com/iudanet/draftkeeper/pkg/api"
)

// buffer is the in-memory content of the edited document
type buffer struct {
	text string
	mu   sync.Mutex
}

func (b *buffer) content() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []byte(b.text), nil
}

func (b *buffer) appendLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text == "" {
		b.text = line
		return
	}
	b.text += "\n" + line
}

func (b *buffer) replace(content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = string(content)
	return nil
}

// RunEdit opens a document and appends every input line to it until /quit or end of
// input. Lines starting with a slash are editor commands.
func (c *Cli) RunEdit(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("%w: draftkeeper edit <document-id>", ErrUsage)
	}
	documentID := args[0]
	if err := validation.ValidateDocumentID(documentID); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	stop, leader, err := c.startElection(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if !leader {
		c.io.Println("Another window is writing; edits will be kept as emergency backups until it closes.")
	}

	buf := &buffer{}
	doc, err := c.documents.ReadDocument(ctx, documentID)
	switch {
	case err == nil:
		buf.text = string(doc.Content)
	case errors.Is(err, storage.ErrDocumentNotFound):
		c.io.Printf("New document %s\n", documentID)
	default:
		return fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	sess, err := c.openSession(documentID, buf.content)
	if err != nil {
		return err
	}

	unsubStatus := sess.OnStatusChange(func(s session.Snapshot) {
		c.io.Printf("[%s] %s\n", s.DocumentID, describeStatus(s))
	})
	defer unsubStatus()

	unsubRecovery := sess.OnRecoveryAvailable(c.offerRecovery)
	defer unsubRecovery()

	if c.limiter != nil {
		unsubWarning := c.limiter.OnWarning(func(u ratelimit.Usage) {
			c.io.Printf("AI usage: %d/%d this minute, %d/%d this hour\n", u.MinuteCount, u.MinuteLimit, u.HourCount, u.HourLimit)
		})
		defer unsubWarning()
	}

	if rec, ok := sess.CheckRecovery(ctx); ok {
		c.offerRecovery(rec)
	}

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	lines, readErr := c.readLines(readCtx)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					c.logger.Error("failed to read input", "error", err)
				}
				break loop
			}
			if quit := c.handleLine(ctx, sess, buf, line); quit {
				break loop
			}
		}
	}

	// Закрытие сессии синхронно дописывает несохраненное
	if err := sess.Destroy(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to save %s on close: %w", documentID, err)
	}
	return nil
}

// handleLine applies one input line; returns true on /quit
func (c *Cli) handleLine(ctx context.Context, sess *session.Session, buf *buffer, line string) bool {
	switch {
	case line == "/quit":
		return true

	case line == "/save":
		if err := sess.SaveImmediate(ctx); err != nil {
			c.io.Printf("Save failed: %v\n", err)
		}

	case line == "/show":
		content, _ := buf.content()
		c.io.Println(string(content))

	case line == "/status":
		c.io.Printf("Status: %s\n", describeStatus(sess.Status()))
		if c.election != nil {
			c.io.Printf("Instance: %s (leader: %t)\n", c.election.InstanceID(), c.election.IsLeader())
		}

	case line == "/restore":
		if err := sess.RestoreBackup(ctx, buf.replace); err != nil {
			c.io.Printf("Restore failed: %v\n", err)
			break
		}
		c.io.Println("Backup restored.")

	case line == "/dismiss":
		if err := sess.DismissBackup(ctx); err != nil {
			c.io.Printf("Failed to dismiss backup: %v\n", err)
			break
		}
		c.io.Println("Backup dismissed.")

	case strings.HasPrefix(line, "/ai "):
		c.insertCompletion(ctx, sess, buf, strings.TrimSpace(strings.TrimPrefix(line, "/ai ")))

	default:
		buf.appendLine(line)
		sess.MarkChanged()
	}
	return false
}

// insertCompletion appends generated text and saves it at once
func (c *Cli) insertCompletion(ctx context.Context, sess *session.Session, buf *buffer, prompt string) {
	if c.ai == nil {
		c.io.Println("AI completion is not configured.")
		return
	}

	resp, err := c.ai.Complete(ctx, api.CompletionRequest{Prompt: prompt, DocumentID: sess.DocumentID()})
	if err != nil {
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			c.io.Printf("AI rate limit reached (%s window), retry in %s\n", limitErr.Window, limitErr.RetryAfter.Round(time.Second))
			return
		}
		c.io.Printf("AI request failed: %v\n", err)
		return
	}

	buf.appendLine(resp.Text)
	// Результат запроса дорогой: сохраняем сразу, без debounce
	if err := sess.SaveImmediate(ctx); err != nil {
		c.io.Printf("Save failed: %v\n", err)
	}
}

func (c *Cli) offerRecovery(rec *models.Backup) {
	c.io.Printf("An unsaved version of %s from %s was recovered (%d bytes). Type /restore or /dismiss.\n",
		rec.DocumentID, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(rec.Content))
}

// readLines reads input in the background so that cancellation is not blocked by it.
// The error channel receives the terminal read error once lines is closed.
func (c *Cli) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			line, err := c.io.ReadLine()
			if err != nil {
				errc <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return lines, errc
}
