package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/greatsami/g-drive-clone/models"
	"github.com/greatsami/g-drive-clone/repositories"

	"gorm.io/gorm"
)

// IdentityInput is the identity asserted by the upstream gateway.
type IdentityInput struct {
	ID       uint
	Username string
	Email    string
	Nickname string
}

type UsageOutput struct {
	FileCount int64 `json:"file_count"`
	UsedBytes int64 `json:"used_bytes"`
}

type ProfileOutput struct {
	User  models.User `json:"user"`
	Usage UsageOutput `json:"usage"`
}

type UserService interface {
	// EnsureUser mirrors a gateway identity locally and gives it a root folder.
	EnsureUser(ctx context.Context, in IdentityInput) (models.User, error)
	GetProfile(ctx context.Context, userID uint) (ProfileOutput, error)
}

type userService struct {
	txManager TxManager
	users     repositories.UserRepository
	files     repositories.FileRepository
	locks     *treeMutex
	resolver  folderResolver
}

func NewUserService(
	txManager TxManager,
	users repositories.UserRepository,
	tree repositories.TreeRepository,
	files repositories.FileRepository,
	locks *treeMutex,
) UserService {
	return &userService{
		txManager: txManager,
		users:     users,
		files:     files,
		locks:     locks,
		resolver:  folderResolver{tree: tree, files: files},
	}
}

func (s *userService) EnsureUser(ctx context.Context, in IdentityInput) (models.User, error) {
	if in.ID == 0 {
		return models.User{}, newAppError(http.StatusUnauthorized, "missing user identity", nil)
	}
	user, err := s.users.GetByID(ctx, nil, in.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, newAppError(http.StatusInternalServerError, "failed to query user", err)
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return models.User{}, newAppError(http.StatusBadRequest, "username and e-mail are required for new users", ErrNameRequired)
	}

	unlock := s.locks.Lock(in.ID)
	defer unlock()

	user = models.User{ID: in.ID, Username: username, Email: email, Nickname: in.Nickname}
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.users.Create(ctx, tx, &user); err != nil {
			return err
		}
		_, err := s.resolver.getOrCreateUserRoot(ctx, tx, user.ID, user.Username)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, newAppError(http.StatusConflict, "username or e-mail already registered", err)
		}
		return models.User{}, newAppError(http.StatusInternalServerError, "failed to register user", err)
	}
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, userID uint) (ProfileOutput, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProfileOutput{}, newAppError(http.StatusNotFound, "user not found", nil)
		}
		return ProfileOutput{}, newAppError(http.StatusInternalServerError, "failed to query user", err)
	}

	count, used, err := s.files.UsageByUser(ctx, nil, userID)
	if err != nil {
		return ProfileOutput{}, newAppError(http.StatusInternalServerError, "failed to compute usage", err)
	}
	return ProfileOutput{
		User:  user,
		Usage: UsageOutput{FileCount: count, UsedBytes: used},
	}, nil
}
