package shardserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"logshard/internal/accesslog"
	"logshard/internal/config"
	"logshard/internal/ledger"
	"logshard/internal/logging"
	"logshard/internal/shard"
	"logshard/internal/whitelist"
)

// ShardPath is the only routable path.
const ShardPath = "/shard"

// LockFileName is created in the access log directory while a server runs.
const LockFileName = "logshard-server.lock"

// FatalFunc terminates the server after an unrecoverable error.
type FatalFunc func(error)

// ExitFatal prints err to stderr and exits with status 1.
func ExitFatal(err error) {
	fmt.Fprintf(os.Stderr, "logshard: fatal: %v\n", err)
	os.Exit(1)
}

// Recorder stores shipped shards.
type Recorder interface {
	Record(ctx context.Context, shipment ledger.Shipment) (int64, error)
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now for log resolution and access log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFatal replaces the fatal error handler.
func WithFatal(fatal FatalFunc) Option {
	return func(s *Server) {
		if fatal != nil {
			s.fatal = fatal
		}
	}
}

// WithWhitelist replaces the whitelist source derived from config.
func WithWhitelist(source whitelist.Source) Option {
	return func(s *Server) {
		if source != nil {
			s.whitelist = source
		}
	}
}

// WithRecorder replaces the ledger opened from config.
func WithRecorder(recorder Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

// WithBlockSize bounds each shard read.
func WithBlockSize(size int) Option {
	return func(s *Server) {
		s.blockSize = size
	}
}

// Server serves shards of the daily log.
type Server struct {
	cfg       config.Server
	address   string
	logger    *slog.Logger
	now       func() time.Time
	fatal     FatalFunc
	whitelist whitelist.Source
	recorder  Recorder
	blockSize int

	cursor *shard.Cursor
	access *accesslog.Log
	ledger *ledger.Store

	mu sync.Mutex

	lockPath   string
	lock       *flock.Flock
	listener   net.Listener
	httpServer *http.Server
	serveErr   chan error
}

// New builds a server from cfg. The ledger, when configured, is opened here
// and closed by Close.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("shard server requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		cfg:      cfg.Server,
		address:  cfg.ServerAddress(),
		logger:   logging.NewComponentLogger(logger, "shard-server"),
		now:      time.Now,
		fatal:    ExitFatal,
		lockPath: filepath.Join(cfg.Server.AccessLogDir, LockFileName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.whitelist == nil {
		if cfg.Server.Whitelist != "" {
			s.whitelist = whitelist.NewFile(cfg.Server.Whitelist)
		} else {
			s.whitelist = whitelist.AllowAll{}
		}
	}
	if s.recorder == nil && cfg.Server.LedgerPath != "" {
		store, err := ledger.Open(cfg.Server.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		s.ledger = store
		s.recorder = store
	}

	s.cursor = shard.NewCursor(shard.Options{
		LogDir:      cfg.Server.LogDir,
		StartOffset: cfg.Server.StartOffset,
		BlockSize:   s.blockSize,
		Now:         s.now,
	})
	s.access = accesslog.New(accesslog.Options{
		Dir:           cfg.Server.AccessLogDir,
		RetentionDays: cfg.Server.AccessLogRetentionDays,
		Now:           s.now,
		Logger:        s.logger,
	})
	s.lock = flock.New(s.lockPath)
	return s, nil
}

// Handler returns the HTTP handler, gzip-wrapped when compression is enabled.
func (s *Server) Handler() http.Handler {
	if s.cfg.Compress {
		return gzhttp.GzipHandler(s)
	}
	return s
}

// Start acquires the instance lock, resolves today's log so the start offset
// applies to it, verifies the access log and whitelist can be opened, and
// begins serving in the background. The server shuts down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another shard server is using %s", s.cfg.AccessLogDir)
	}

	s.mu.Lock()
	err = s.refresh(s.logger)
	s.mu.Unlock()
	if err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("shard server listen: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.serveErr = make(chan error, 1)

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("shard server error", logging.Error(err))
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("shard server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("log_dir", s.cfg.LogDir),
		logging.String("access_log_dir", s.cfg.AccessLogDir),
		logging.Int64("start_offset", s.cfg.StartOffset),
		logging.Bool("whitelist", s.cfg.Whitelist != ""),
		logging.Bool("compress", s.cfg.Compress),
	)
	return nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case err, ok := <-s.serveErr:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
	}
	s.shutdown()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close releases the access log and ledger.
func (s *Server) Close() error {
	s.shutdown()
	err := s.access.Close()
	if s.ledger != nil {
		if closeErr := s.ledger.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Server) shutdown() {
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}
	s.releaseLock()
}

func (s *Server) releaseLock() {
	if s.lock == nil || !s.lock.Locked() {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release server lock",
			logging.String("lock", s.lockPath),
			logging.Error(err),
		)
	}
}

// refresh resolves today's paths and reloads the whitelist.
func (s *Server) refresh(logger *slog.Logger) error {
	change := s.cursor.Refresh()
	if change.Changed {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "log_resolved"),
			logging.String(logging.FieldLogPath, change.Path),
			logging.Int64("offset", s.cursor.Offset()),
		}
		if !change.First {
			attrs = append(attrs, logging.String("previous", change.Previous))
		}
		logger.Info("active log changed", logging.Args(attrs...)...)
	}
	if err := s.access.Refresh(); err != nil {
		return err
	}
	if err := s.whitelist.Refresh(); err != nil {
		return err
	}
	return nil
}

func newRequestID() string {
	return uuid.NewString()
}
