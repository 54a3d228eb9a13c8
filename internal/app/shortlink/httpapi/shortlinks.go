package httpapi

import (
	"errors"
	"net/http"

	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
	"shortener.local/internal/platform/metrics"
)

const deleteTokenHeader = "X-Delete-Token"

type createRequest struct {
	OriginalURL string `json:"originalUrl"`
	ExpireIn    *int64 `json:"expireIn,omitempty"` // 毫秒
}

type deleteRequest struct {
	DeleteToken string `json:"deleteToken"`
}

func NewCreateHandler(reg *shortlink.Registry, v views) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req createRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		link, err := reg.Create(ctx.Req.Context(), req.OriginalURL, req.ExpireIn)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		metrics.ShortlinksCreated.Inc()

		ctx.SetHeader("Location", "/urls/"+link.ShortCode)
		ctx.JSON(http.StatusCreated, v.created(ctx, link))
	}
}

func NewRedirectHandler(reg *shortlink.Registry) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		link, err := reg.Resolve(ctx.Req.Context(), ctx.Param("code"))
		if err != nil {
			metrics.ShortlinkRedirects.WithLabelValues(redirectResult(err)).Inc()
			abortWithDomainError(ctx, err)
			return
		}
		metrics.ShortlinkRedirects.WithLabelValues("ok").Inc()
		ctx.Redirect(http.StatusFound, link.OriginalURL)
	}
}

func redirectResult(err error) string {
	switch {
	case errors.Is(err, shortlink.ErrNotFound):
		return "not_found"
	case errors.Is(err, shortlink.ErrExpired):
		return "expired"
	}
	return "error"
}

// NewListHandler 默认只列未过期的；?all=true 时包含已过期未清理的。
func NewListHandler(reg *shortlink.Registry, v views) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		activeOnly := ctx.Query("all") != "true"
		links, err := reg.List(ctx.Req.Context(), activeOnly)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, v.publicList(ctx, links))
	}
}

// NewDeleteHandler 令牌先看 X-Delete-Token 头，没有再看请求体。
func NewDeleteHandler(reg *shortlink.Registry) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		token := ctx.GetHeader(deleteTokenHeader)
		if token == "" && ctx.Req.ContentLength != 0 {
			var req deleteRequest
			err := ctx.ShouldBindJSON(&req)
			switch {
			case err == nil:
				token = req.DeleteToken
			case !errors.Is(err, gee.ErrEmptyBody):
				ctx.AbortWithError(http.StatusBadRequest, "Invalid json")
				return
			}
		}
		if err := reg.Delete(ctx.Req.Context(), ctx.Param("code"), token); err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		metrics.ShortlinksDeleted.Inc()
		ctx.Status(http.StatusNoContent)
	}
}

func NewInfoHandler(reg *shortlink.Registry, v views) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		info, err := reg.Info(ctx.Req.Context(), ctx.Param("code"))
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, v.info(ctx, info))
	}
}
