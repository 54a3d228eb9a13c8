package httpapi

import (
	"errors"
	"net/http"

	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
)

const (
	msgInvalidURL    = "Invalid URL."
	msgMissingToken  = "Delete token is required. Send it in the X-Delete-Token header or in the request body."
	msgNotFound      = "URL not found."
	msgExpired       = "Expired URL."
	msgForbidden     = "Invalid delete token."
	msgInternalError = "Internal Server Error"
)

// msgInvalidExpiration 告诉调用方允许的范围。
var msgInvalidExpiration = "Invalid expiration. Must be between 1s and " +
	shortlink.FormatDuration(shortlink.MaxExpiration()) + "."

// abortWithDomainError 把领域错误翻译成状态码和对外消息。
// 存储故障等未知错误只返回通用消息，细节已经在 Registry 里记过日志。
func abortWithDomainError(ctx *gee.Context, err error) {
	code, message := statusFor(err)
	ctx.AbortWithError(code, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shortlink.ErrInvalidURL):
		return http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, shortlink.ErrInvalidExpiration):
		return http.StatusBadRequest, msgInvalidExpiration
	case errors.Is(err, shortlink.ErrMissingToken):
		return http.StatusBadRequest, msgMissingToken
	case errors.Is(err, shortlink.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shortlink.ErrExpired):
		return http.StatusBadRequest, msgExpired
	case errors.Is(err, shortlink.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, shortlink.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	}
	return http.StatusInternalServerError, msgInternalError
}
