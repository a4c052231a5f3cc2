package persist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/opcgdb/internal/app/planner"
	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/fetch"
	"github.com/John-Robertt/opcgdb/internal/infra/fsx"
	"github.com/John-Robertt/opcgdb/internal/infra/imgx"
)

// ImageError 记录单张图片的失败原因。
type ImageError struct {
	ID  string
	URL string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image id=%s url=%s: %v", e.ID, e.URL, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

var errNotImage = errors.New("响应内容不是图片")

// Downloader 顺序下载图片。单张失败只记录，不影响同批其它图片。
type Downloader struct {
	HTTP *http.Client
	Log  *slog.Logger

	// Delay 是两次实际下载之间的间隔；跳过的图片不计。
	Delay time.Duration

	// OnResult 在每张图片处理完后调用（可为 nil）。
	OnResult func(done, total int, res domain.ImageResult)
}

// Images 为 records 规划并执行下载，结果顺序与计划一致。
func (d *Downloader) Images(ctx context.Context, dir, baseURL string, records []domain.CardRecord) ([]domain.ImageResult, error) {
	st, err := planner.ReadDirState(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return d.Run(ctx, dir, planner.PlanImages(baseURL, records, st)), nil
}

// Run 执行下载计划。
func (d *Downloader) Run(ctx context.Context, dir string, plans []domain.ImagePlan) []domain.ImageResult {
	out := make([]domain.ImageResult, 0, len(plans))
	downloaded := 0
	for _, p := range plans {
		res := domain.ImageResult{ID: p.ID, URL: p.URL, File: p.File}

		switch {
		case p.Err != nil:
			res.Status = domain.ImageFailed
			res.Error = p.Err.Error()
			d.logFailure(&ImageError{ID: p.ID, URL: p.URL, Err: p.Err})
		case p.Skip:
			res.Status = domain.ImageSkipped
			d.log().Debug("图片已存在，跳过", "id", p.ID, "file", p.File)
		default:
			if downloaded > 0 && d.Delay > 0 {
				if err := sleepCtx(ctx, d.Delay); err != nil {
					res.Status = domain.ImageFailed
					res.Error = err.Error()
					out = d.emit(out, res, len(plans))
					continue
				}
			}
			downloaded++

			err := d.download(ctx, dir, p)
			switch {
			case err == nil:
				res.Status = domain.ImageDownloaded
				d.log().Debug("图片下载完成", "id", p.ID, "file", p.File)
			case errors.Is(err, os.ErrExist):
				// 规划之后才出现的同名文件：保持原文件不动。
				res.Status = domain.ImageSkipped
			default:
				res.Status = domain.ImageFailed
				res.Error = err.Error()
				d.logFailure(&ImageError{ID: p.ID, URL: p.URL, Err: err})
			}
		}
		out = d.emit(out, res, len(plans))
	}
	return out
}

func (d *Downloader) emit(out []domain.ImageResult, res domain.ImageResult, total int) []domain.ImageResult {
	out = append(out, res)
	if d.OnResult != nil {
		d.OnResult(len(out), total, res)
	}
	return out
}

func (d *Downloader) download(ctx context.Context, dir string, p domain.ImagePlan) error {
	if d.HTTP == nil {
		return errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &fetch.HTTPStatusError{URL: p.URL, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}

	br := bufio.NewReaderSize(resp.Body, 512)
	head, _ := br.Peek(512)
	if len(head) == 0 {
		return errors.New("empty response body")
	}
	if _, ok := imgx.Sniff(head); !ok && strings.HasPrefix(http.DetectContentType(head), "text/") {
		return errNotImage
	}

	_, err = fsx.WriteStreamAtomicNoOverwrite(dir, p.File, br)
	return err
}

func (d *Downloader) logFailure(err *ImageError) {
	d.log().Warn("图片下载失败", "id", err.ID, "url", err.URL, "err", err.Err)
}

func (d *Downloader) log() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
