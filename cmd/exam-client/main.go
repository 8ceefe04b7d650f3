package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/auth"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/database"
	"github.com/stemsi/exstem-client/internal/examsession"
	"github.com/stemsi/exstem-client/internal/journal"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/terminal"
	"github.com/stemsi/exstem-client/internal/transport"
	"github.com/stemsi/exstem-client/internal/transport/hallstore"
	"github.com/stemsi/exstem-client/internal/transport/practice"
	"github.com/stemsi/exstem-client/internal/transport/restclient"
	"github.com/stemsi/exstem-client/internal/transport/wsclient"
	"github.com/stemsi/exstem-client/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	// stdout belongs to the terminal UI.
	logOut, err := logger.Open(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log file:", err)
		os.Exit(1)
	}
	defer logOut.Close()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logOut)
	log.Info().
		Str("transport", cfg.Transport).
		Str("exam_id", cfg.ExamID).
		Dur("autosave_delay", cfg.AutosaveDelay).
		Msg("Starting ExStem exam client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, terminal.ErrQuit) {
			fmt.Println("Exam left before submission. Your answers are kept; start the client again to continue.")
			return
		}
		log.Error().Err(err).Msg("Exam client stopped")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	kind, err := transport.ParseKind(cfg.Transport)
	if err != nil {
		return err
	}

	// ─── Connect Transport & Load Paper ───────────────────────────────
	bootCtx, cancel := context.WithTimeout(ctx, 2*cfg.RequestTimeout)
	defer cancel()

	client, paper, err := openTransport(bootCtx, kind, cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	if paper.DurationMinutes <= 0 {
		paper.DurationMinutes = int(cfg.DefaultDuration / time.Minute)
	}
	if err := validator.ValidatePaper(paper); err != nil {
		return fmt.Errorf("invalid exam paper: %w", err)
	}

	// ─── Open Answer Journal ──────────────────────────────────────────
	jr, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jr.Close()

	resume, err := client.LoadState(bootCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load saved state, starting fresh")
		resume = nil
	}
	pending, err := jr.Pending(ctx, paper.SessionID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read answer journal")
	}
	resume = journal.Replay(resume, pending)
	if resume != nil {
		log.Info().
			Dur("remaining", resume.Remaining).
			Int("persisted", len(resume.Persisted)).
			Int("unsaved", len(resume.Unsaved)).
			Msg("Resuming exam session")
	}

	// ─── Start Session ────────────────────────────────────────────────
	opts := []examsession.Option{
		examsession.WithLogger(log),
		examsession.WithAutosaveDelay(cfg.AutosaveDelay),
		examsession.WithRecorder(jr),
	}
	if resume != nil {
		opts = append(opts, examsession.WithResume(resume))
	}
	sess, err := examsession.New(paper, client, opts...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	sess.Start(ctx)
	defer sess.Close()

	// ─── Run Terminal ─────────────────────────────────────────────────
	ui := terminal.New(os.Stdin, os.Stdout, log)
	if err := ui.Run(ctx, sess); err != nil {
		return err
	}

	snap := sess.Snapshot()
	if snap.State != model.StateFinalized {
		return nil
	}
	if err := jr.Forget(context.Background(), paper.SessionID); err != nil {
		log.Warn().Err(err).Msg("Failed to clear answer journal")
	}
	fmt.Printf("\r\nSubmitted %d of %d answers. Results: %s\r\n", snap.AnsweredCount, snap.QuestionCount, snap.ResultsPath)
	if pb, ok := client.(*practice.Backend); ok {
		if res, ok := pb.Result(); ok {
			fmt.Printf("Practice score: %d/%d (%d correct)\r\n", res.Score, res.MaxScore, res.Correct)
		}
	}
	return nil
}

// openTransport builds the configured transport and loads the paper through it.
func openTransport(ctx context.Context, kind transport.Kind, cfg *config.Config, log zerolog.Logger) (transport.Client, *model.Paper, error) {
	switch kind {
	case transport.KindPractice:
		pb, err := practice.Load(cfg.PracticeFile, log)
		if err != nil {
			return nil, nil, err
		}
		paper, err := pb.LoadPaper(ctx)
		return pb, paper, err

	case transport.KindREST:
		rc, err := restclient.New(cfg.APIBaseURL, cfg.ExamID, cfg.StudentToken, cfg.EntryToken, cfg.RequestTimeout, log)
		if err != nil {
			return nil, nil, err
		}
		paper, err := rc.LoadPaper(ctx)
		if err != nil {
			rc.Close()
			return nil, nil, err
		}
		return rc, paper, nil

	case transport.KindWebSocket:
		// The paper and join go over REST; answers and submit go over the exam stream.
		rc, err := restclient.New(cfg.APIBaseURL, cfg.ExamID, cfg.StudentToken, cfg.EntryToken, cfg.RequestTimeout, log)
		if err != nil {
			return nil, nil, err
		}
		paper, err := rc.LoadPaper(ctx)
		if err != nil {
			rc.Close()
			return nil, nil, err
		}
		wc, err := wsclient.New(cfg.StreamBaseURL(), cfg.ExamID, cfg.StudentToken, log,
			wsclient.WithTimeout(cfg.RequestTimeout),
			wsclient.WithSessionID(paper.SessionID),
		)
		if err != nil {
			rc.Close()
			return nil, nil, err
		}
		return transport.Split(rc, wc, wc, rc), paper, nil

	case transport.KindHall:
		return openHall(ctx, cfg, log)
	}
	return nil, nil, fmt.Errorf("unsupported transport %q", kind)
}

func openHall(ctx context.Context, cfg *config.Config, log zerolog.Logger) (transport.Client, *model.Paper, error) {
	claims, err := auth.ParseStudentToken(cfg.StudentToken, cfg.JWTSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("student token: %w", err)
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := auth.VerifyActiveLogin(ctx, rdb, claims); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("student login: %w", err)
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	if err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	closeAll := closerFunc(func() error {
		pool.Close()
		return rdb.Close()
	})

	store, err := hallstore.New(rdb, pool, cfg.ExamID, claims.UserID, log)
	if err != nil {
		closeAll.Close()
		return nil, nil, err
	}
	paper, err := store.LoadPaper(ctx)
	if err != nil {
		closeAll.Close()
		return nil, nil, err
	}
	return transport.Split(store, store, store, closeAll), paper, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
