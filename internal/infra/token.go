package infra

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

// AuthTokenKey is the local store key holding the backend bearer token.
const AuthTokenKey = "auth_token"

// StoredTokenSource reads a token from the local store on every call,
// so a `login` from the CLI is picked up by a running daemon.
// A non-empty override (flag or environment) always wins.
type StoredTokenSource struct {
	store    domain.KeyValueStore
	key      string
	override string
	logger   *zap.Logger
}

// NewStoredTokenSource creates a token source for the given store key.
func NewStoredTokenSource(store domain.KeyValueStore, key, override string, logger *zap.Logger) *StoredTokenSource {
	return &StoredTokenSource{
		store:    store,
		key:      key,
		override: strings.TrimSpace(override),
		logger:   logger,
	}
}

// Token returns the current token, or "" when signed out.
func (s *StoredTokenSource) Token() string {
	if s.override != "" {
		return s.override
	}
	tok, err := s.store.Get(s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to read token", zap.String("key", s.key), zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(tok)
}

// Save stores token for later runs. An empty token clears it.
func (s *StoredTokenSource) Save(token string) error {
	return s.store.Set(s.key, strings.TrimSpace(token))
}

var _ domain.TokenSource = (*StoredTokenSource)(nil)
