package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/infra/httpx"
)

// 站点对请求头比较挑剔，这里固定为浏览器提交表单时的取值。
var formHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Encoding": "gzip, deflate, br, zstd",
	"Accept-Language": "fr,fr-FR;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6",
	"Cache-Control":   "no-cache",
	"Content-Type":    "application/x-www-form-urlencoded",
}

const seriesParam = "series"

// Client 对每个来源发起一次卡表检索 POST。不做缓存与重试（POST 不可重放）。
type Client struct {
	HTTP *http.Client
}

func New(c *http.Client) *Client {
	return &Client{HTTP: c}
}

// PrepareRequest 构造来源对应的 POST 请求：
//   - 目标地址为去掉 query 的 URL
//   - 表单 freewords 恒为空，series 取自原 query（缺失则为空）
func PrepareRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("url 必须是 http/https")
	}

	series := u.Query().Get(seriesParam)
	u.RawQuery = ""
	u.ForceQuery = false

	form := url.Values{}
	form.Set("freewords", "")
	form.Set(seriesParam, series)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	for k, v := range formHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Fetch 返回解码后的页面 HTML。非 2xx 返回 *HTTPStatusError（包在 *Error 内）。
func (c *Client) Fetch(ctx context.Context, src domain.SourceConfig) ([]byte, error) {
	if c == nil || c.HTTP == nil {
		return nil, errors.New("http client 不能为空")
	}

	req, err := PrepareRequest(ctx, src.URL)
	if err != nil {
		return nil, &Error{URL: src.URL, Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &Error{URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: req.URL.String(), Err: &HTTPStatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}}
	}

	b, err := httpx.ReadBody(resp)
	if err != nil {
		return nil, &Error{URL: req.URL.String(), Err: err}
	}
	return b, nil
}

// FetchOrEmpty 抓取失败时记录日志并返回 nil（空页面），调用方照常解析出 0 条记录。
func (c *Client) FetchOrEmpty(ctx context.Context, log *slog.Logger, src domain.SourceConfig) []byte {
	b, err := c.Fetch(ctx, src)
	LogResult(log, src, len(b), err)
	if err != nil {
		return nil
	}
	return b
}

// LogResult 输出一次抓取的结果日志：失败 Warn，成功 Info。
// run 需要错误值写入报告，因此直接调用 Fetch 再用它记录日志。
func LogResult(log *slog.Logger, src domain.SourceConfig, n int, err error) {
	if log == nil {
		return
	}
	if err != nil {
		log.Warn("卡表抓取失败", "lang", src.Lang, "set", src.Set, "url", src.URL, "err", err)
		return
	}
	log.Info("卡表抓取完成", "lang", src.Lang, "set", src.Set, "bytes", n)
}
