package domain

import (
	"errors"
	"fmt"
)

// Ошибки хранилища. Репозиторий переводит нарушения уникальных индексов в
// эти значения, чтобы вызывающий код отличал их от прочих сбоев БД.
var (
	// ErrActivityNotFound — событие с указанным id не существует.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityExists — событие с таким URL уже зарегистрировано.
	ErrActivityExists = errors.New("activity already exists")
	// ErrDuplicateFeedback — пользователь уже оставил отзыв об этом событии.
	ErrDuplicateFeedback = errors.New("feedback already recorded")
)

// CollaboratorError сигнализирует о сбое внешнего сервиса. Конвейер,
// получивший такую ошибку, прерывает текущую попытку и не меняет состояние.
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError оборачивает ошибку внешнего сервиса.
func NewCollaboratorError(service string, err error) *CollaboratorError {
	return &CollaboratorError{Service: service, Err: err}
}

// IsCollaboratorError проверяет, вызвана ли ошибка внешним сервисом.
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
