package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/extract"
	"github.com/John-Robertt/opcgdb/internal/fetch"
	"github.com/John-Robertt/opcgdb/internal/infra/cache"
	"github.com/John-Robertt/opcgdb/internal/infra/httpx"
	"github.com/John-Robertt/opcgdb/internal/persist"
)

const (
	PhaseFetch   = "fetch"
	PhaseExtract = "extract"
	PhaseWrite   = "write"
	PhaseImages  = "images"
)

// Deps 是运行所需的外部依赖；为空的 client 按配置自动构造。
type Deps struct {
	PageClient  *http.Client
	ImageClient *http.Client
	Log         *slog.Logger
}

// Execute 顺序处理所有来源并返回 RunReport。
// 单个来源的失败只记录在对应 item 中，不影响后续来源。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出进度（nil 表示不输出）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	rr := domain.RunReport{
		Config:    eff.ConfigPath,
		TargetDir: eff.TargetDir,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.SourceResult, 0, len(eff.Sources)),
	}
	if obs != nil {
		obs.OnStart(eff)
	}

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	pageClient, imageClient, err := clients(eff, deps)
	if err != nil {
		for _, src := range eff.Sources {
			rr.Items = append(rr.Items, failed(src, domain.ErrCodeConfigInvalid, err.Error()))
		}
		return finish(rr, eff, log)
	}

	fc := fetch.New(pageClient)
	store := cache.New(eff.TargetDir)
	dl := &persist.Downloader{HTTP: imageClient, Log: log, Delay: eff.ImageDelay}
	if obs != nil {
		dl.OnResult = obs.OnImageDone
	}

	total := len(eff.Sources)
	for i, src := range eff.Sources {
		if ctx.Err() != nil {
			rr.Items = append(rr.Items, failed(src, domain.ErrCodeFetchFailed, ctx.Err().Error()))
			continue
		}
		if obs != nil {
			obs.OnSourceStart(i+1, total, src)
		}
		started := time.Now()
		res := processSource(ctx, eff, src, fc, store, dl, log, obs)
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnSourceDone(i+1, total, res, time.Since(started))
		}
	}

	return finish(rr, eff, log)
}

func clients(eff config.EffectiveConfig, deps Deps) (page, image *http.Client, err error) {
	page = deps.PageClient
	if page == nil {
		if page, err = httpx.NewPageClient(eff.ProxyURL); err != nil {
			return nil, nil, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	image = deps.ImageClient
	if image == nil {
		if image, err = httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy); err != nil {
			return nil, nil, err
		}
	}
	return page, image, nil
}

// processSource 执行单个来源的 fetch → extract → write → images。
//
// 抓取失败时仍然写出空数组文件：该来源的结果就是 0 条记录。
func processSource(ctx context.Context, eff config.EffectiveConfig, src domain.SourceConfig, fc *fetch.Client, store cache.Store, dl *persist.Downloader, log *slog.Logger, obs Observer) domain.SourceResult {
	res := domain.SourceResult{
		URL:    src.URL,
		Lang:   src.Lang,
		Set:    src.Set,
		Status: domain.StatusOK,
		Images: []domain.ImageResult{},
	}
	phase := func(name string, fields map[string]any, started time.Time) {
		if obs != nil {
			obs.OnPhaseDone(src, name, fields, time.Since(started))
		}
	}

	t := time.Now()
	markup, err := fc.Fetch(ctx, src)
	fetch.LogResult(log, src, len(markup), err)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeFetchFailed
		res.ErrorMsg = err.Error()
		markup = nil
	} else {
		if eff.SaveHTML {
			if err := store.WritePage(src.Lang, src.Set, markup); err != nil {
				log.Warn("页面快照写入失败", "lang", src.Lang, "set", src.Set, "err", err)
			}
		}
	}
	phase(PhaseFetch, map[string]any{"bytes": len(markup), "ok": err == nil}, t)

	t = time.Now()
	records := extract.Cards(markup, src.Lang, src.Set)
	res.Cards = len(records)
	phase(PhaseExtract, map[string]any{"cards": len(records)}, t)

	t = time.Now()
	name, err := persist.WriteSet(eff.TargetDir, src.Lang, src.Set, records)
	if err != nil {
		log.Warn("卡组 JSON 写入失败", "lang", src.Lang, "set", src.Set, "err", err)
		setFailure(&res, domain.ErrCodeWriteFailed, err)
	} else {
		res.Output = name
	}
	phase(PhaseWrite, map[string]any{"file": name}, t)

	t = time.Now()
	imgs, err := dl.Images(ctx, eff.TargetDir, src.URL, records)
	if err != nil {
		log.Warn("图片目录不可用", "dir", eff.TargetDir, "err", err)
		setFailure(&res, domain.ErrCodeWriteFailed, err)
	} else {
		res.Images = imgs
	}
	var downloaded, skipped, failedN int
	for _, im := range res.Images {
		switch im.Status {
		case domain.ImageDownloaded:
			downloaded++
		case domain.ImageSkipped:
			skipped++
		case domain.ImageFailed:
			failedN++
		}
	}
	phase(PhaseImages, map[string]any{"downloaded": downloaded, "skipped": skipped, "failed": failedN}, t)

	return res
}

// setFailure 只记录第一个失败原因（抓取失败优先于后续阶段）。
func setFailure(res *domain.SourceResult, code string, err error) {
	if res.Status == domain.StatusFailed {
		return
	}
	res.Status = domain.StatusFailed
	res.ErrorCode = code
	res.ErrorMsg = err.Error()
}

func failed(src domain.SourceConfig, code, msg string) domain.SourceResult {
	return domain.SourceResult{
		URL:       src.URL,
		Lang:      src.Lang,
		Set:       src.Set,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Images:    []domain.ImageResult{},
	}
}

func finish(rr domain.RunReport, eff config.EffectiveConfig, log *slog.Logger) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	b, err := json.MarshalIndent(rr, "", "  ")
	if err == nil {
		err = cache.New(eff.TargetDir).WriteReport(b)
	}
	if err != nil {
		log.Warn("report 写入失败", "err", err)
	}
	return rr
}
