package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes 是 JSON 请求体的大小上限。
const MaxBodyBytes = 1 << 20

// ErrEmptyBody 请求体为空。
var ErrEmptyBody = errors.New("empty body")

// ShouldBindJSON 严格解析 JSON：未知字段、多个 JSON 值、超过 MaxBodyBytes 都算错误。
func (c *Context) ShouldBindJSON(dst any) error {
	if c.Req.Body == nil {
		return ErrEmptyBody
	}
	body := http.MaxBytesReader(c.Writer, c.Req.Body, MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON value")
	}
	return nil
}

// BindJSON 解析失败时直接以 400 结束请求。
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithError(http.StatusBadRequest, "Invalid json")
		return err
	}
	return nil
}
