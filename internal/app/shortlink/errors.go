package shortlink

import (
	"errors"
	"fmt"
)

// ErrValidation 是所有“客户端输入不合法”错误的根，HTTP 层统一映射成 400。
var ErrValidation = errors.New("validation error")

var (
	ErrInvalidURL        = fmt.Errorf("%w: invalid url", ErrValidation)
	ErrInvalidExpiration = fmt.Errorf("%w: invalid expiration", ErrValidation)
	ErrMissingToken      = fmt.Errorf("%w: delete token is required", ErrValidation)
)

var (
	ErrNotFound  = errors.New("shortlink not found")
	ErrExpired   = errors.New("shortlink expired")
	ErrForbidden = errors.New("delete token mismatch")

	// ErrStorage 包装存储层的故障（连接、未预期的约束冲突等）。
	// 只对单次操作致命，调用方记录日志后返回通用错误。
	ErrStorage = errors.New("storage error")

	// ErrCodeSpaceExhausted 表示在最大尝试次数内没有找到未被占用的短码。
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")

	// ErrCodeTaken 由 Store.Insert 在短码唯一约束冲突时返回，Registry 收到后重试。
	ErrCodeTaken = errors.New("short code already taken")

	ErrInvalidArgument = errors.New("invalid argument")
)

// storageErr 把非领域错误包装成 ErrStorage，领域错误原样返回。
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrExpired, ErrCodeTaken, ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
