package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/observability"
	"github.com/paradigm4/arrayshim/internal/session"
)

// Server holds everything the HTTP handlers need: the session pool, the
// backend address new_session dials, and the metrics/logging sinks that
// every handler reports through.
type Server struct {
	Store *session.Store

	BackendHost string
	BackendPort int

	DocRoot string

	// DefaultUser/DefaultPassword back new_session calls that omit the
	// user/password query parameters, when an operator has configured a
	// central backend credential instead of trusting every caller to pass
	// one.
	DefaultUser     string
	DefaultPassword string

	Metrics *observability.Metrics
	Tracer  *observability.TracerProvider
	Logger  *slog.Logger
}

// NewServer wires a Server around an already-constructed session Store.
// metrics and tracer may be nil, in which case recording is a no-op.
func NewServer(store *session.Store, backendHost string, backendPort int, docRoot string, metrics *observability.Metrics, tracer *observability.TracerProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Store:       store,
		BackendHost: backendHost,
		BackendPort: backendPort,
		DocRoot:     docRoot,
		Metrics:     metrics,
		Tracer:      tracer,
		Logger:      logger,
	}
}

func (s *Server) recordSessionResult(ok bool) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.RecordSessionCreated(ok)
	s.Metrics.SetSessionGauges(s.Store.Active(), s.Store.Len())
}

func (s *Server) recordQueryResult(err error) {
	if s.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		var se *apierr.StatusError
		if errors.As(err, &se) {
			s.Metrics.RecordError(strconv.Itoa(se.Status))
		}
	}
	s.Metrics.RecordQuery(0, status)
}

func (s *Server) recordCancel() {
	if s.Metrics == nil {
		return
	}
	s.Metrics.RecordCancel()
}

// Healthy reports whether the backend host is at least resolvable. It does
// not dial a full connection, since new_session already does that on the
// request path and a health probe shouldn't consume a session slot.
func (s *Server) Healthy(ctx context.Context) error {
	if s.BackendHost == "" {
		return nil
	}
	resolver := net.DefaultResolver
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := resolver.LookupHost(ctx, s.BackendHost)
	return err
}
