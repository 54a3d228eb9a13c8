package httpapi

import (
	"strings"
	"time"

	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
)

// linkView 是只读查询返回的形状，不含删除令牌。
type linkView struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Clicks      int64      `json:"clicks"`
	ShortURL    string     `json:"shortUrl"`
}

// createdView 只在创建成功时返回一次，带删除令牌。
type createdView struct {
	linkView
	DeleteToken string `json:"deleteToken"`
}

type infoView struct {
	URL    linkView   `json:"url"`
	Status statusView `json:"status"`
}

type statusView struct {
	IsExpired           bool    `json:"isExpired"`
	TimeUntilExpiration *string `json:"timeUntilExpiration"`
}

type statsView struct {
	TotalURLs   int64     `json:"totalUrls"`
	ActiveURLs  int64     `json:"activeUrls"`
	ExpiredURLs int64     `json:"expiredUrls"`
	TotalClicks int64     `json:"totalClicks"`
	Timestamp   time.Time `json:"timestamp"`
}

type healthView struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// views 把领域对象投影成 JSON 形状；shortUrl 的前缀在这里统一计算。
type views struct {
	publicBaseURL string
}

func newViews(publicBaseURL string) views {
	return views{publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")}
}

// baseURL 优先用配置的 PUBLIC_BASE_URL，其次按请求的 scheme + host 拼。
func (v views) baseURL(ctx *gee.Context) string {
	if v.publicBaseURL != "" {
		return v.publicBaseURL
	}
	scheme := ctx.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		if ctx.Req.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	if ctx.Req.Host == "" {
		return ""
	}
	return scheme + "://" + ctx.Req.Host
}

func (v views) public(ctx *gee.Context, link shortlink.ShortLink) linkView {
	return publicView(v.baseURL(ctx), link)
}

func (v views) created(ctx *gee.Context, link shortlink.ShortLink) createdView {
	return createdView{
		linkView:    publicView(v.baseURL(ctx), link),
		DeleteToken: link.DeleteToken,
	}
}

func (v views) publicList(ctx *gee.Context, links []shortlink.ShortLink) []linkView {
	base := v.baseURL(ctx)
	out := make([]linkView, 0, len(links))
	for _, link := range links {
		out = append(out, publicView(base, link))
	}
	return out
}

func (v views) info(ctx *gee.Context, info shortlink.LinkInfo) infoView {
	return infoView{
		URL: v.public(ctx, info.Link),
		Status: statusView{
			IsExpired:           info.IsExpired,
			TimeUntilExpiration: info.TimeUntilExpiration,
		},
	}
}

func publicView(base string, link shortlink.ShortLink) linkView {
	return linkView{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		Clicks:      link.Clicks,
		ShortURL:    base + "/" + link.ShortCode,
	}
}

func toStatsView(st shortlink.Stats) statsView {
	return statsView{
		TotalURLs:   st.Total,
		ActiveURLs:  st.Active,
		ExpiredURLs: st.Expired,
		TotalClicks: st.TotalClicks,
		Timestamp:   st.At,
	}
}
