package shardserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"logshard/internal/accesslog"
	"logshard/internal/ledger"
	"logshard/internal/logging"
	"logshard/internal/shard"
)

const (
	msgNoContent      = "no content"
	msgNotWhitelisted = "not whitelisted"
	msgNotFound       = "not found"
	msgNotAllowed     = "method not allowed"
)

// ServeHTTP handles one request to completion before the next.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestID := newRequestID()
	ctx := logging.WithRequestID(r.Context(), requestID)
	ip := clientIP(r)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldClientIP, ip))

	if err := s.refresh(logger); err != nil {
		logging.ErrorWithContext(logger, "server refresh failed", "server_fatal",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the access log directory and whitelist file"),
			logging.String(logging.FieldImpact, "shard server is stopping"),
		)
		s.fatal(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !s.whitelist.Allowed(ip) {
		logger.Warn("client not whitelisted", logging.String(logging.FieldEventType, "client_rejected"))
		s.respond(w, r, ip, http.StatusUnauthorized, msgNotWhitelisted, logger)
		return
	}
	if r.URL.Path != ShardPath {
		s.respond(w, r, ip, http.StatusNotFound, msgNotFound, logger)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.respond(w, r, ip, http.StatusMethodNotAllowed, msgNotAllowed, logger)
		return
	}

	next, err := s.cursor.Read()
	if err != nil {
		logger.Debug("active log unavailable",
			logging.String(logging.FieldLogPath, s.cursor.Path()),
			logging.Error(err),
		)
		s.respond(w, r, ip, http.StatusNoContent, msgNoContent, logger)
		return
	}
	if next.Empty() {
		logger.Debug("no complete lines",
			logging.String(logging.FieldLogPath, next.Path),
			logging.Int64("offset", next.Offset),
			logging.Int("pending", next.Pending),
		)
		s.respond(w, r, ip, http.StatusNoContent, msgNoContent, logger)
		return
	}

	s.ship(ctx, w, r, ip, requestID, next, logger)
}

func (s *Server) ship(ctx context.Context, w http.ResponseWriter, r *http.Request, ip, requestID string, next shard.Shard, logger *slog.Logger) {
	body := make([]byte, 0, len(next.Name)+1+len(next.Payload))
	body = append(body, next.Name...)
	body = append(body, '\n')
	body = append(body, next.Payload...)

	message := fmt.Sprintf("log=%s payload_size=%d new_offset=%d", next.Path, len(next.Payload), next.Offset)
	s.writeHeaders(w)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.WarnWithContext(logger, "shard delivery failed", "shard_write_failed",
			logging.String(logging.FieldLogPath, next.Path),
			logging.Int64("start", next.Start),
			logging.Int64("end", next.End),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart with --offset from the ledger to resend"),
			logging.String(logging.FieldImpact, "shard bytes were consumed but may not have reached the client"),
		)
	}
	s.writeAccess(r, ip, http.StatusOK, message, logger)

	logger.Info("shard served",
		logging.String(logging.FieldEventType, "shard_served"),
		logging.String(logging.FieldLogPath, next.Path),
		logging.Int64("start", next.Start),
		logging.Int64("end", next.End),
		logging.Int("payload_size", len(next.Payload)),
		logging.Int("pending", next.Pending),
	)

	if s.recorder == nil {
		return
	}
	_, err := s.recorder.Record(ctx, ledger.Shipment{
		LogName:     next.Name,
		StartOffset: next.Start,
		EndOffset:   next.End,
		PayloadSize: len(next.Payload),
		ClientIP:    ip,
		RequestID:   requestID,
		ShippedAt:   s.now(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "ledger record failed", "ledger_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database path and disk space"),
			logging.String(logging.FieldImpact, "shipment missing from ledger"),
		)
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, ip string, status int, message string, logger *slog.Logger) {
	s.writeHeaders(w)
	w.WriteHeader(status)
	s.writeAccess(r, ip, status, message, logger)
}

func (s *Server) writeHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Connection", "close")
}

func (s *Server) writeAccess(r *http.Request, ip string, status int, message string, logger *slog.Logger) {
	err := s.access.Write(accesslog.Entry{
		ClientIP: ip,
		Time:     s.now(),
		Method:   r.Method,
		Path:     r.URL.RequestURI(),
		Proto:    r.Proto,
		Status:   status,
		Message:  message,
	})
	if err != nil {
		logging.WarnWithContext(logger, "access log write failed", "access_log_write_failed",
			logging.String(logging.FieldLogPath, s.access.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check disk space for the access log directory"),
			logging.String(logging.FieldImpact, "request missing from access log"),
		)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
