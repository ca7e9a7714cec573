package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/client/backup"
	"github.com/iudanet/draftkeeper/internal/client/iocli"
	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/session"
	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/models"
	"github.com/iudanet/draftkeeper/internal/ratelimit"
	"github.com/iudanet/draftkeeper/pkg/api"
)

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("invalid usage")

// Documents is the document repository used by commands
type Documents interface {
	storage.DocumentStore
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Election is the leader election of this process
type Election interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsLeader() bool
	InstanceID() string
	OnLeadershipChange(fn func(isLeader bool)) (unsubscribe func())
}

// Completer generates text for the /ai command
type Completer interface {
	Complete(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error)
}

// Deps are the services commands run on. Election, AI and Limiter are optional.
type Deps struct {
	IO          iocli.IO
	Documents   Documents
	Backups     *backup.Store
	Coordinator *save.Coordinator
	Election    Election
	AI          Completer
	Limiter     *ratelimit.Limiter
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Session     session.Config
	// LeaderWait сколько ждать лидерства перед началом редактирования
	LeaderWait time.Duration
}

type Cli struct {
	io          iocli.IO
	documents   Documents
	backups     *backup.Store
	coordinator *save.Coordinator
	election    Election
	ai          Completer
	limiter     *ratelimit.Limiter
	clock       clockwork.Clock
	logger      *slog.Logger
	sessionCfg  session.Config
	leaderWait  time.Duration
}

func New(deps Deps) *Cli {
	if deps.IO == nil {
		deps.IO = iocli.NewStdio()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Cli{
		io:          deps.IO,
		documents:   deps.Documents,
		backups:     deps.Backups,
		coordinator: deps.Coordinator,
		election:    deps.Election,
		ai:          deps.AI,
		limiter:     deps.Limiter,
		clock:       deps.Clock,
		logger:      deps.Logger,
		sessionCfg:  deps.Session,
		leaderWait:  deps.LeaderWait,
	}
}

// openSession opens a session for documentID over source
func (c *Cli) openSession(documentID string, source session.ContentSource) (*session.Session, error) {
	deps := session.Deps{
		Coordinator: c.coordinator,
		Backups:     c.backups,
		Documents:   c.documents,
		Clock:       c.clock,
		Logger:      c.logger,
	}
	if c.election != nil {
		deps.Leadership = c.election
	}

	sess, err := session.New(documentID, source, deps, c.sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", documentID, err)
	}
	return sess, nil
}

// startElection joins the election and waits up to leaderWait for leadership.
// Returns a stop function and whether this process is the leader.
func (c *Cli) startElection(ctx context.Context) (stop func(), leader bool, err error) {
	if c.election == nil {
		return func() {}, true, nil
	}

	if err := c.election.Start(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to start leader election: %w", err)
	}
	stop = func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.election.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("failed to shutdown leader election", "error", err)
		}
	}

	if c.leaderWait <= 0 {
		return stop, c.election.IsLeader(), nil
	}

	becameLeader := make(chan struct{})
	var once sync.Once
	unsubscribe := c.election.OnLeadershipChange(func(isLeader bool) {
		if isLeader {
			once.Do(func() { close(becameLeader) })
		}
	})
	defer unsubscribe()

	timer := c.clock.NewTimer(c.leaderWait)
	defer timer.Stop()

	select {
	case <-becameLeader:
		leader = true
	case <-timer.Chan():
		leader = c.election.IsLeader()
	case <-ctx.Done():
		stop()
		return nil, false, ctx.Err()
	}

	c.logger.Debug("election settled", "instance_id", c.election.InstanceID(), "leader", leader)
	return stop, leader, nil
}

func describeStatus(s session.Snapshot) string {
	switch s.Status {
	case save.StatusSaved:
		if s.LastSavedAt.IsZero() {
			return "saved"
		}
		return "saved at " + s.LastSavedAt.Format(time.TimeOnly)
	case save.StatusSuppressed:
		return "read-only: another window is writing, edits kept as backup"
	case save.StatusError:
		return fmt.Sprintf("save failed: %v", s.Err)
	default:
		return string(s.Status)
	}
}

func PrintUsage() {
	fmt.Println("DraftKeeper")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  draftkeeper [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -version               Show version information")
	fmt.Println("  -db PATH               Path to the documents database (DRAFTKEEPER_DB)")
	fmt.Println("  -backups PATH          Path to the emergency backups database (DRAFTKEEPER_BACKUPS)")
	fmt.Println("  -redis URL             Redis URL shared by all windows (DRAFTKEEPER_REDIS_URL)")
	fmt.Println("  -ai URL                Completion service URL (DRAFTKEEPER_AI_ENDPOINT)")
	fmt.Println("  -log-level LEVEL       debug, info, warn, error (DRAFTKEEPER_LOG_LEVEL)")
	fmt.Println("  -h                     Show every option")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  edit <id>                      Edit a document; each input line is appended")
	fmt.Println("  show <id>                      Print a document")
	fmt.Println("  list                           List documents")
	fmt.Println("  recover <id> [-restore|-dismiss]  Inspect, restore or drop an emergency backup")
	fmt.Println("  delete <id>                    Delete a document and its backups")
	fmt.Println("  cleanup                        Remove expired backups")
	fmt.Println()
	fmt.Println("Editor commands:")
	fmt.Println("  /save  /show  /status  /restore  /dismiss  /ai <prompt>  /quit")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  draftkeeper edit chapter-1")
	fmt.Println("  draftkeeper -redis redis://localhost:6379/0 edit chapter-1")
	fmt.Println("  draftkeeper recover -restore chapter-1")
}
