package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"shopflow/internal/auth"
	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/outbox"
	"shopflow/internal/repository/outbox_repo"
	"shopflow/internal/repository/user_repo"
	"shopflow/internal/validation"
)

const aggregateUser = "user"

type IdentityService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	GetUser(ctx context.Context, id int64) (*UserResponse, error)
}

type identityService struct {
	db               *sql.DB
	userRepo         user_repo.UserRepository
	outboxRepo       outbox_repo.OutboxRepository
	tokens           *auth.TokenManager
	bcryptCost       int
	userCreatedTopic string
	logger           *zap.Logger
}

func NewIdentityService(
	db *sql.DB,
	userRepo user_repo.UserRepository,
	outboxRepo outbox_repo.OutboxRepository,
	tokens *auth.TokenManager,
	bcryptCost int,
	userCreatedTopic string,
	logger *zap.Logger,
) IdentityService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &identityService{
		db:               db,
		userRepo:         userRepo,
		outboxRepo:       outboxRepo,
		tokens:           tokens,
		bcryptCost:       bcryptCost,
		userCreatedTopic: userCreatedTopic,
		logger:           logger,
	}
}

func (s *identityService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         domain.UserRoleUser,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}

	err = database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}
		msg, err := outbox.NewMessage(aggregateUser, strconv.FormatInt(user.ID, 10),
			domain.EventTypeUserCreated, s.userCreatedTopic, domain.UserCreatedEvent{
				ID:        user.ID,
				Username:  user.Username,
				Email:     user.Email,
				CreatedAt: user.CreatedAt,
			})
		if err != nil {
			return err
		}
		return s.outboxRepo.CreateMessageTx(ctx, tx, msg)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEntity) {
			return nil, err
		}
		s.logger.Error("Failed to register user", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return s.authResponse(user)
}

func (s *identityService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("Login rejected", zap.Int64("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	return s.authResponse(user)
}

func (s *identityService) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(user), nil
}

func (s *identityService) authResponse(user *domain.User) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      mapUserToResponse(user),
	}, nil
}
