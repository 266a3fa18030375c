package service

import (
	"errors"

	"quiz-battle/models"
)

// Ошибки, которые видит только запросивший игрок
var (
	ErrNotFound       = errors.New("room not found")
	ErrFull           = errors.New("room is full")
	ErrUnauthorized   = errors.New("not a participant of this room")
	ErrAlreadyInMatch = errors.New("player is already in an active match")
	ErrInvalidRequest = errors.New("invalid request")
)

// Коды ошибок в событии game_error
const (
	CodeNotFound       = "NOT_FOUND"
	CodeFull           = "FULL"
	CodeAlreadyInMatch = "ALREADY_IN_MATCH"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL"
)

// ErrorCode сопоставляет ошибку коду для клиента.
// ErrUnauthorized отдается как NOT_FOUND, чтобы не раскрывать существование комнаты.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized):
		return CodeNotFound
	case errors.Is(err, ErrFull):
		return CodeFull
	case errors.Is(err, ErrAlreadyInMatch):
		return CodeAlreadyInMatch
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// ErrorPayload формирует тело game_error
func ErrorPayload(err error) models.ErrorPayload {
	code := ErrorCode(err)
	message := err.Error()
	switch code {
	case CodeNotFound:
		message = ErrNotFound.Error()
	case CodeInternal:
		message = "internal error"
	}
	return models.ErrorPayload{Code: code, Message: message}
}
