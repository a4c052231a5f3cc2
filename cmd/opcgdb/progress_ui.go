package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/opcgdb/internal/app/run"
	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：图片下载较慢时也会定期输出一行
type progressUI struct {
	w io.Writer

	okColor   *color.Color
	failColor *color.Color
	dimColor  *color.Color

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	totalSources int
	doneSources  int
	current      string

	imgDone  int
	imgTotal int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, colored bool) *progressUI {
	p := &progressUI{
		w:                  w,
		okColor:            color.New(color.FgGreen, color.Bold),
		failColor:          color.New(color.FgRed, color.Bold),
		dimColor:           color.New(color.Faint),
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
	for _, c := range []*color.Color{p.okColor, p.failColor, p.dimColor} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.totalSources = len(eff.Sources)

	fmt.Fprintf(p.w, "[%s] opcgdb run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	if eff.LocalPath != "" {
		fmt.Fprintf(p.w, "  local: %s\n", eff.LocalPath)
	}
	fmt.Fprintf(p.w, "  target_dir: %s\n", eff.TargetDir)
	fmt.Fprintf(p.w, "  sources: %d\n", len(eff.Sources))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  image_proxy: %s\n", onOff(eff.ImageProxy))
	fmt.Fprintf(p.w, "  save_html: %s\n", onOff(eff.SaveHTML))
	fmt.Fprintf(p.w, "  image_delay: %s\n", eff.ImageDelay)
	fmt.Fprintln(p.w)

	if p.totalSources > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnSourceStart(idx, total int, src domain.SourceConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = src.Key()
	p.imgDone, p.imgTotal = 0, 0
	fmt.Fprintf(p.w, "[%d/%d] %s %s\n", idx, total, src.Key(), p.dimColor.Sprint(truncate(src.URL, 120)))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(src domain.SourceConfig, name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseFetch:
		if ok, _ := fields["ok"].(bool); !ok {
			fmt.Fprintf(p.w, "  抓取: %s (%s)\n", p.failColor.Sprint("失败"), formatShortDuration(dur))
		} else {
			fmt.Fprintf(p.w, "  抓取: bytes=%d (%s)\n", intField(fields, "bytes"), formatShortDuration(dur))
		}
	case run.PhaseExtract:
		fmt.Fprintf(p.w, "  解析: cards=%d (%s)\n", intField(fields, "cards"), formatShortDuration(dur))
	case run.PhaseWrite:
		file, _ := fields["file"].(string)
		fmt.Fprintf(p.w, "  写出: %s (%s)\n", file, formatShortDuration(dur))
	case run.PhaseImages:
		fmt.Fprintf(p.w, "  图片: downloaded=%d skipped=%d failed=%d (%s)\n",
			intField(fields, "downloaded"), intField(fields, "skipped"), intField(fields, "failed"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "  %s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

// OnImageDone 只输出失败的图片；成功/跳过只计数，交给 keepalive 与阶段汇总。
func (p *progressUI) OnImageDone(done, total int, res domain.ImageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.imgDone, p.imgTotal = done, total
	if res.Status != domain.ImageFailed {
		return
	}
	fmt.Fprintf(p.w, "  [%d/%d] %s %s: %s\n", done, total, res.ID, p.failColor.Sprint("FAIL"), truncate(res.Error, 160))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnSourceDone(idx, total int, res domain.SourceResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doneSources = idx
	p.current = ""

	key := res.Lang + "_" + res.Set
	if res.Status == domain.StatusFailed {
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n\n",
			idx, total, key, p.failColor.Sprint("FAIL"), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(p.w, "[%d/%d] %s %s cards=%d (%s)\n\n",
			idx, total, key, p.okColor.Sprint("OK"), res.Cards, formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	if p.doneSources >= p.totalSources {
		p.stopTickerLocked()
	}
}

// Close 停止 keepalive（运行被取消、来源未全部完成时也需要调用）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.keepaliveLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) keepaliveLineLocked() string {
	line := fmt.Sprintf("进度: sources=%d/%d", p.doneSources, p.totalSources)
	if p.current != "" {
		line += " current=" + p.current
	}
	if p.imgTotal > 0 {
		line += fmt.Sprintf(" images=%d/%d", p.imgDone, p.imgTotal)
	}
	return line + " elapsed=" + formatElapsed(time.Since(p.startedAt))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
