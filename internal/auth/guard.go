package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/blinkwatch/blinkwatch/internal/config"
)

// ModeAPIKey turns enforcement on.
const ModeAPIKey = "apikey"

// Guard checks API keys.
type Guard struct {
	enabled bool
	header  string
	key     []byte
}

// New builds a Guard from cfg, resolving the key from the environment.
func New(cfg config.AuthConfig) *Guard {
	return NewWithKey(cfg.Mode, cfg.EffectiveHeader(), cfg.Key())
}

// NewWithKey builds a Guard from explicit values.
func NewWithKey(mode, header, key string) *Guard {
	return &Guard{
		enabled: mode == ModeAPIKey && key != "",
		header:  strings.ToLower(header),
		key:     []byte(key),
	}
}

// Enabled reports whether keys are enforced.
func (g *Guard) Enabled() bool { return g.enabled }

func (g *Guard) valid(got string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), g.key) == 1
}

func (g *Guard) checkContext(ctx context.Context) error {
	if !g.enabled {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(g.header)
	if len(vals) == 0 || !g.valid(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// UnaryInterceptor rejects unary calls without a valid key.
func (g *Guard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := g.checkContext(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor rejects streams (such as health Watch) without a valid key.
func (g *Guard) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := g.checkContext(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// Middleware rejects HTTP requests without a valid key.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.enabled && !g.valid(r.Header.Get(g.header)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
