package http

import (
	"encoding/json"
	"math"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitMessage = "Too many requests. Please wait a moment and try again."
	sentryFlushWait  = 2 * time.Second
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id := uuid.NewString()
		ctx = huma.WithContext(ctx, WithRequestID(ctx.Context(), id))
		ctx.SetHeader("X-Request-ID", id)

		if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
			hub.Scope().SetTag("request_id", id)
		}

		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		allowed, wait := s.rateLimiter.Take(ip)
		if allowed {
			next(ctx)
			return
		}

		s.rejectRateLimited(ctx, req, ip, wait)
	}
}

// rejectRateLimited writes the 429 problem body. The Retry-After value is the
// client's actual token deficit, rounded up to whole seconds.
func (s *Server) rejectRateLimited(ctx huma.Context, req *stdhttp.Request, ip string, wait time.Duration) {
	retryAfter := int(math.Ceil(wait.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	if s.logger != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"client_ip":   ip,
			"path":        req.URL.Path,
			"retry_after": retryAfter,
		})
		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Warn("request rate limited")
	}

	model := huma.ErrorModel{
		Title:  stdhttp.StatusText(stdhttp.StatusTooManyRequests),
		Status: stdhttp.StatusTooManyRequests,
		Detail: rateLimitMessage,
	}

	payload, err := json.Marshal(&model)
	if err != nil {
		payload = []byte(`{"status":429}`)
	}

	// Headers must be in place before the status write flushes them.
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetHeader("Retry-After", strconv.Itoa(retryAfter))
	ctx.SetStatus(stdhttp.StatusTooManyRequests)
	_, _ = ctx.BodyWriter().Write(payload)
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)
		s.logRequest(ctx, time.Since(start))
	}
}

func (s *Server) logRequest(ctx huma.Context, elapsed time.Duration) {
	status := ctx.Status()
	if status == 0 {
		status = stdhttp.StatusOK
	}

	entry := s.logger.WithFields(logrus.Fields{
		"method":     ctx.Method(),
		"status":     status,
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	})

	if op := ctx.Operation(); op != nil {
		entry = entry.WithField("route", op.Path)
	}
	if req, _ := humago.Unwrap(ctx); req != nil {
		entry = entry.WithFields(logrus.Fields{
			"path":      req.URL.Path,
			"client_ip": clientIPFromRequest(req),
		})
	}
	if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	switch {
	case status >= stdhttp.StatusInternalServerError:
		entry.Error("request failed")
	case status >= stdhttp.StatusBadRequest:
		entry.Warn("request rejected")
	default:
		entry.Info("request completed")
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = eris.Errorf("panic: %v", rec)
			}

			s.recordError(ctx.Context(), err, "panic recovered", logrus.Fields{"method": ctx.Method()})

			if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
				hub.RecoverWithContext(ctx.Context(), rec)
				hub.Flush(sentryFlushWait)
			}

			ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
			ctx.SetStatus(stdhttp.StatusInternalServerError)
			_, _ = ctx.BodyWriter().Write([]byte("internal server error"))
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		hub.Scope().SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			hub.Scope().SetTag("http.route", op.Path)
		}
		defer hub.Flush(sentryFlushWait)

		ctx = huma.WithContext(ctx, sentry.SetHubOnContext(ctx.Context(), hub))
		next(ctx)
	}
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
