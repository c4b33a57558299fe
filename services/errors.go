package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"

	"gorm.io/gorm"
)

var (
	ErrNameRequired      = errors.New("name is required")
	ErrEmptySelection    = errors.New("no files selected")
	ErrFileNotFound      = errors.New("file not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrEmailRequired     = errors.New("recipient e-mail is required")
	ErrShareWithSelf     = errors.New("cannot share with yourself")
	ErrInvalidParent     = repositories.ErrInvalidParent
	ErrRootImmutable     = repositories.ErrRootImmutable
	ErrNotTrashed        = errors.New("file is not in the trash")
	ErrNothingToArchive  = errors.New("nothing to archive")
	ErrFileTooLarge      = errors.New("file exceeds the size limit")
	ErrStorage           = errors.New("storage failure")
)

type AppError struct {
	HTTPCode int
	Message  string
	Data     interface{}
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAppError(httpCode int, message string, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Err: err}
}

func newAppErrorWithData(httpCode int, message string, data interface{}, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Data: data, Err: err}
}

func storageError(message string, err error) *AppError {
	return newAppError(http.StatusBadGateway, message, fmt.Errorf("%w: %w", ErrStorage, err))
}

// mapRepoError turns repository failures into AppErrors; AppErrors pass through.
func mapRepoError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newAppError(http.StatusNotFound, "file not found", ErrFileNotFound)
	case errors.Is(err, repositories.ErrInvalidParent):
		return newAppError(http.StatusBadRequest, "invalid target folder", ErrInvalidParent)
	case errors.Is(err, repositories.ErrRootImmutable):
		return newAppError(http.StatusBadRequest, "the root folder cannot be changed", ErrRootImmutable)
	case errors.Is(err, storage.ErrNotFound):
		return newAppError(http.StatusNotFound, "file content not found", ErrFileNotFound)
	default:
		return newAppError(http.StatusInternalServerError, message, err)
	}
}
