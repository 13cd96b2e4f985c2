package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

const (
	// PushTokenKey is the local store key for the cached push token.
	PushTokenKey = "push_token"

	// DeviceRegistrationTimeout bounds the backend registration call.
	DeviceRegistrationTimeout = 5 * time.Second
)

// DeviceService registers this device's push token with the backend.
type DeviceService struct {
	registrar domain.DeviceRegistrar
	local     domain.KeyValueStore
	tokens    domain.TokenSource
	logger    *zap.Logger
}

// NewDeviceService creates a device service.
func NewDeviceService(registrar domain.DeviceRegistrar, local domain.KeyValueStore, tokens domain.TokenSource, logger *zap.Logger) *DeviceService {
	return &DeviceService{
		registrar: registrar,
		local:     local,
		tokens:    tokens,
		logger:    logger,
	}
}

// Register caches pushToken locally and registers it with the backend.
// The local cache is kept even when the backend call fails.
func (s *DeviceService) Register(ctx context.Context, pushToken, platform string) error {
	if pushToken == "" {
		return errors.New("push token is empty")
	}
	if err := s.local.Set(PushTokenKey, pushToken); err != nil {
		return fmt.Errorf("failed to cache push token: %w", err)
	}

	if s.tokens.Token() == "" {
		s.logger.Info("not signed in, push token cached for later registration")
		return domain.ErrUnauthenticated
	}

	regCtx, cancel := context.WithTimeout(ctx, DeviceRegistrationTimeout)
	defer cancel()

	if err := s.registrar.RegisterDevice(regCtx, pushToken, platform); err != nil {
		s.logger.Warn("device registration failed", zap.Error(err))
		return fmt.Errorf("register device: %w", err)
	}
	s.logger.Info("device registered", zap.String("platform", platform))
	return nil
}

// RegisterCached re-registers the cached push token, if any. Used at
// daemon start; failures are logged only.
func (s *DeviceService) RegisterCached(ctx context.Context, platform string) {
	token, err := s.local.Get(PushTokenKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to read cached push token", zap.Error(err))
		}
		return
	}
	_ = s.Register(ctx, token, platform)
}
