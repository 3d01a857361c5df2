package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrTooSoon         = NewErr("TOO_SOON", "posting cooldown active", http.StatusTooManyRequests)
	ErrDuplicate       = NewErr("DUPLICATE_MESSAGE", "message already posted", http.StatusConflict)
	ErrMessageTooLong  = NewErr("MESSAGE_TOO_LONG", "message too long", http.StatusBadRequest)
	ErrMessageTooShort = NewErr("MESSAGE_TOO_SHORT", "message too short", http.StatusBadRequest)
	ErrNotPrintable    = NewErr("NOT_PRINTABLE", "message contains non-printable characters", http.StatusBadRequest)
	ErrPasteTooLarge   = NewErr("PASTE_TOO_LARGE", "paste too large", http.StatusBadRequest)
	ErrPasteTooSmall   = NewErr("PASTE_TOO_SMALL", "paste too small", http.StatusBadRequest)
	ErrPasteNotFound   = NewErr("PASTE_NOT_FOUND", "paste not found", http.StatusNotFound)
	ErrAlreadyExists   = NewErr("ALREADY_EXISTS", "destination already exists", http.StatusConflict)
	ErrBanned          = NewErr("BANNED", "access denied", http.StatusForbidden)
	ErrUnauthorized    = NewErr("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrInvalidRequest  = NewErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest)
	ErrContentRequired = NewErr("CONTENT_REQUIRED", "content required", http.StatusBadRequest)
	ErrRateLimited     = NewErr("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)
	ErrInternalServer  = NewErr("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }
func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

type ErrResp struct {
	Error ErrDetail `json:"error"`
}
type ErrDetail struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}

func ToResp(err error) ErrResp {
	if e, ok := err.(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	return ErrResp{Error: ErrDetail{Code: "INTERNAL_ERROR", Msg: "internal error"}}
}
func Status(err error) int {
	if e, ok := err.(*Err); ok {
		return e.Status
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
