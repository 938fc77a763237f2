package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type Store interface {
	CreateUser(ctx context.Context, user *storage.User) error
	GetUser(ctx context.Context, userID string) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	UpdateUser(ctx context.Context, userID string, mutate storage.UserMutation) (*storage.User, error)
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name *string
}

// Service manages demo customer profiles. Login is an email lookup with no credentials.
type Service struct {
	store   Store
	logger  *zap.Logger
	newID   func() string
	timeNow func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		logger:  logger.With(zap.String("component", "user")),
		newID:   uuid.NewString,
		timeNow: time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, name string) (*storage.User, error) {
	if email == "" || name == "" {
		return nil, apperr.Validation("Email and name are required")
	}

	u := &storage.User{
		ID:        s.newID(),
		Email:     email,
		Name:      name,
		CreatedAt: s.timeNow().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if !apperr.IsDomain(err) {
			metrics.OperationErrorsTotal.WithLabelValues("register_user").Inc()
			s.logger.Error("Failed to register user", zap.Error(err))
		}
		return nil, err
	}

	metrics.UsersRegisteredTotal.Inc()
	s.logger.Info("User registered", zap.String("user_id", u.ID))
	return u, nil
}

func (s *Service) Login(ctx context.Context, email string) (*storage.User, error) {
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	return s.store.GetUserByEmail(ctx, email)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*storage.User, error) {
	u, err := s.store.UpdateUser(ctx, userID, func(u *storage.User) error {
		if update.Name != nil {
			u.Name = *update.Name
		}
		now := s.timeNow().UTC()
		u.UpdatedAt = &now
		return nil
	})
	if err != nil {
		if !apperr.IsDomain(err) {
			metrics.OperationErrorsTotal.WithLabelValues("update_user").Inc()
			s.logger.Error("Failed to update user", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	return u, nil
}
