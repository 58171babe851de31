package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// TokenManager is a mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateSessionToken(sessionID, accountID uuid.UUID, ttl time.Duration) (string, error) {
	args := m.Called(sessionID, accountID, ttl)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseSessionToken(token string) (uuid.UUID, uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Get(1).(uuid.UUID), args.Error(2)
}

// Mailer is a mock of model.Mailer.
type Mailer struct {
	mock.Mock
}

func (m *Mailer) SendVerification(ctx context.Context, email, token string, purpose model.VerificationPurpose) error {
	args := m.Called(ctx, email, token, purpose)
	return args.Error(0)
}

// Storage is a mock of model.Storage.
type Storage struct {
	mock.Mock
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	var reader io.ReadCloser
	if args.Get(0) != nil {
		reader = args.Get(0).(io.ReadCloser)
	}
	return reader, args.Error(1)
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Storage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
