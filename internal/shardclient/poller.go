package shardclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzhttp"

	"logshard/internal/config"
	"logshard/internal/fileutil"
	"logshard/internal/logging"
)

// LockFileName is created in the replica directory while a client runs.
const LockFileName = ".logshard-client.lock"

const hexDumpLimit = 64

// Result describes one poll.
type Result struct {
	Status int
	Name   string
	Path   string
	// Written is the number of payload bytes appended locally.
	Written int
	// Created is true when the replica did not exist before this poll.
	Created        bool
	CommandStarted bool
}

// Option customizes a Poller.
type Option func(*Poller)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Poller) {
		if client != nil {
			p.http = client
		}
	}
}

// WithRunner replaces the shell runner used for the new-file command.
func WithRunner(runner Runner) Option {
	return func(p *Poller) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// Poller fetches shards on a fixed interval.
type Poller struct {
	url      string
	localDir string
	command  string
	interval time.Duration
	logger   *slog.Logger
	http     *http.Client
	runner   Runner

	lockPath string
}

// New builds a poller from the client section of cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Poller, error) {
	if cfg == nil {
		return nil, errors.New("shard client requires config")
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	localDir, err := filepath.Abs(cfg.Client.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("resolve local directory: %w", err)
	}

	p := &Poller{
		url:      cfg.ShardURL(),
		localDir: localDir,
		command:  cfg.Client.Command,
		interval: cfg.PollInterval(),
		logger:   logging.NewComponentLogger(logger, "shard-client"),
		lockPath: filepath.Join(localDir, LockFileName),
	}
	p.http = &http.Client{
		Timeout:   cfg.RequestTimeout(),
		Transport: gzhttp.Transport(http.DefaultTransport),
	}
	p.runner = ShellRunner{Logger: p.logger}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run polls until ctx is cancelled. Only one client may replicate into a
// local directory at a time.
func (p *Poller) Run(ctx context.Context) error {
	lock := flock.New(p.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another shard client is replicating into %s", p.localDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release client lock", logging.String("lock", p.lockPath), logging.Error(err))
		}
	}()

	p.logger.Info("shard client started",
		logging.String("url", p.url),
		logging.String("local_dir", p.localDir),
		logging.Duration("interval", p.interval),
		logging.Bool("command", p.command != ""),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shard client stopped")
			return nil
		case <-timer.C:
		}
		_, _ = p.Poll(ctx)
		timer.Reset(p.interval)
	}
}

// Poll performs one request and applies its result. Failures are logged and
// returned; none of them stop the polling loop.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.logTransportError(ctx, err)
		return Result{}, err
	}
	defer resp.Body.Close()

	result := Result{Status: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusOK:
		return p.apply(ctx, resp, result)
	case http.StatusNoContent:
		p.logger.Debug("no new data", logging.Int("status", resp.StatusCode))
	case http.StatusUnauthorized:
		logging.WarnWithContext(p.logger, "401 response", "client_unauthorized",
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldErrorHint, "add this host to the server whitelist"),
			logging.String(logging.FieldImpact, "no shards are received"),
		)
	case http.StatusNotFound:
		logging.WarnWithContext(p.logger, "404 response", "client_not_found",
			logging.Int("status", resp.StatusCode),
			logging.String("url", p.url),
			logging.String(logging.FieldErrorHint, "check the server host and port"),
			logging.String(logging.FieldImpact, "no shards are received"),
		)
	default:
		logging.WarnWithContext(p.logger, fmt.Sprintf("unrecognized response code: %d", resp.StatusCode), "client_unexpected_status",
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldErrorHint, "check that the address points at a shard server"),
			logging.String(logging.FieldImpact, "response ignored"),
		)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return result, nil
}

func (p *Poller) apply(ctx context.Context, resp *http.Response, result Result) (Result, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logTransportError(ctx, err)
		return result, err
	}

	shard, err := ParseShard(body)
	if err != nil {
		logging.WarnWithContext(p.logger, "malformed response", "client_malformed_response",
			logging.Int("body_size", len(body)),
			logging.String("hex", hex.EncodeToString(body[:min(len(body), hexDumpLimit)])),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the server version"),
			logging.String(logging.FieldImpact, "shard discarded"),
		)
		return result, err
	}
	result.Name = shard.Name

	path, err := filepath.Abs(filepath.Join(p.localDir, shard.Name))
	if err != nil {
		return result, fmt.Errorf("resolve replica path: %w", err)
	}
	result.Path = path

	created, err := fileutil.AppendFile(path, shard.Payload)
	if err != nil {
		logging.ErrorWithContext(p.logger, "local write failed", "client_write_failed",
			logging.String(logging.FieldLogPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions and free space in the local directory"),
			logging.String(logging.FieldImpact, "shard lost from replica"),
		)
		return result, fmt.Errorf("append %s: %w", path, err)
	}
	result.Created = created
	result.Written = len(shard.Payload)

	p.logger.Info("shard applied",
		logging.String(logging.FieldEventType, "shard_applied"),
		logging.String(logging.FieldLogPath, path),
		logging.Int("payload_size", result.Written),
		logging.Bool("created", created),
	)

	if !created || p.command == "" {
		return result, nil
	}
	command := ExpandCommand(p.command, path)
	if err := p.runner.Start(command); err != nil {
		logging.WarnWithContext(p.logger, "new-file command failed to start", "client_command_failed",
			logging.String("command", command),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the --command template"),
			logging.String(logging.FieldImpact, "new replica was not processed"),
		)
		return result, nil
	}
	result.CommandStarted = true
	p.logger.Info("new-file command started",
		logging.String(logging.FieldEventType, "client_command_started"),
		logging.String("command", command),
	)
	return result, nil
}

func (p *Poller) logTransportError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	attrs := []logging.Attr{
		logging.String("url", p.url),
		logging.Error(err),
		logging.String(logging.FieldImpact, "retrying on next poll"),
	}
	if isTimeout(err) {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "raise --timeout or check server load"))
		logging.WarnWithContext(p.logger, "request timeout", "client_timeout", attrs...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldErrorHint, "check that the server is running and reachable"))
	logging.WarnWithContext(p.logger, "connection error", "client_connection_error", attrs...)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
