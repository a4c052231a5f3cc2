package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"dario.cat/mergo"

	"github.com/John-Robertt/opcgdb/internal/domain"
)

const (
	ErrCodeNotFound  = domain.ErrCodeConfigNotFound
	ErrCodeInvalid   = domain.ErrCodeConfigInvalid
	ErrCodeNoSources = domain.ErrCodeConfigNoSources
)

const (
	// DefaultTargetDir 相对配置文件所在目录。
	DefaultTargetDir = "opcg-data"
	// DefaultImageDelay 是两次图片下载之间的默认间隔。
	DefaultImageDelay = 200 * time.Millisecond
)

// defaultNames 是未指定 --config 时在 cwd 下依次查找的文件名。
var defaultNames = []string{"configuration.json", "configuration.json5", "configuration.toml"}

// CLIArgs 是 CLI 可覆盖的配置项；*Set 记录是否显式指定，保证 --save-html=false 也能覆盖配置。
type CLIArgs struct {
	ConfigPath string
	TargetDir  string

	SaveHTML    bool
	SaveHTMLSet bool
}

// FileConfig 对应配置文件的对象形态。
// 早期的纯数组形态（[{url,lang,set}, ...]）在解码时被转换为只有 Sources 的 FileConfig。
type FileConfig struct {
	TargetDir    string                `json:"target_dir" toml:"target_dir"`
	Proxy        *ProxyConfig          `json:"proxy" toml:"proxy"`
	ImageProxy   bool                  `json:"image_proxy" toml:"image_proxy"`
	SaveHTML     bool                  `json:"save_html" toml:"save_html"`
	ImageDelayMS int                   `json:"image_delay_ms" toml:"image_delay_ms"`
	Sources      []domain.SourceConfig `json:"sources" toml:"sources"`
}

type ProxyConfig struct {
	URL string `json:"url" toml:"url"`
}

// EffectiveConfig 是合并、补默认值并校验之后的最终配置。
type EffectiveConfig struct {
	ConfigPath string
	LocalPath  string // 实际合并的 <name>.local.<ext>；未使用时为空

	TargetDir  string
	ProxyURL   string
	ImageProxy bool
	SaveHTML   bool
	ImageDelay time.Duration

	// Sources 只包含可用来源，顺序与配置一致。
	Sources []domain.SourceConfig
	// Skipped 是被跳过的条目（配置中的原始位置 + 原因），不影响其他来源。
	Skipped []SkippedSource
}

// SkippedSource 是一条不可用的来源配置。
type SkippedSource struct {
	Index  int
	Reason string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeNoSources:
		return fmt.Sprintf("%s：配置文件 %q 中没有可用来源", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现、读取并合并配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
//  1. --config 给出路径：读取该文件（相对 cwd）
//  2. 否则依次尝试 cwd 下的 configuration.json / .json5 / .toml
//
// 同目录的 <name>.local.<ext> 存在时以 mergo.WithOverride 覆盖到主配置之上
// （零值字段不会覆盖，例如 local 中的 false 不能关掉主配置的 true）。
//
// 覆盖优先级：target_dir / save_html 为 CLI > 配置 > 默认；其余只由配置控制。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := ""
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	} else {
		cfgPath = discover(cwdAbs)
	}

	fc, localPath, err := readMerged(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff, err := merge(filepath.Dir(cfgPath), cwdAbs, cli, fc)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = cfgPath
			return EffectiveConfig{}, ce
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	eff.LocalPath = localPath
	return eff, nil
}

func discover(cwd string) string {
	for _, n := range defaultNames {
		p := filepath.Join(cwd, n)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		if _, err := os.Stat(localName(p)); err == nil {
			return p
		}
	}
	return filepath.Join(cwd, defaultNames[0])
}

// readMerged 读取主配置与 local 覆盖。两者都不存在时返回 os.ErrNotExist。
func readMerged(path string) (FileConfig, string, error) {
	var out FileConfig
	found := false

	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return out, "", err
	}
	if err == nil {
		out, err = decode(path, b)
		if err != nil {
			return out, "", err
		}
		found = true
	}

	lp := localName(path)
	lb, err := os.ReadFile(lp)
	if err != nil && !os.IsNotExist(err) {
		return out, "", err
	}
	if err == nil {
		override, err := decode(lp, lb)
		if err != nil {
			return out, "", fmt.Errorf("%s：%w", filepath.Base(lp), err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, "", err
		}
		found = true
	} else {
		lp = ""
	}

	if !found {
		return out, "", os.ErrNotExist
	}
	return out, lp, nil
}

// localName: configuration.json => configuration.local.json
func localName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func invalid(format string, args ...any) error {
	return &Error{Code: ErrCodeInvalid, Err: fmt.Errorf(format, args...)}
}

var segmentRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func merge(cfgDir, cwd string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	targetDir := DefaultTargetDir
	base := cfgDir
	if strings.TrimSpace(fc.TargetDir) != "" {
		targetDir = fc.TargetDir
	}
	if strings.TrimSpace(cli.TargetDir) != "" {
		targetDir = cli.TargetDir
		base = cwd
	}

	saveHTML := fc.SaveHTML
	if cli.SaveHTMLSet {
		saveHTML = cli.SaveHTML
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid("proxy.url 无效：%q", proxyURL)
		}
	}
	if fc.ImageProxy && proxyURL == "" {
		return EffectiveConfig{}, invalid("image_proxy=true 但 proxy.url 为空")
	}

	delay := DefaultImageDelay
	switch {
	case fc.ImageDelayMS < 0:
		return EffectiveConfig{}, invalid("image_delay_ms 不能为负数：%d", fc.ImageDelayMS)
	case fc.ImageDelayMS > 0:
		delay = time.Duration(fc.ImageDelayMS) * time.Millisecond
	}

	sources := make([]domain.SourceConfig, 0, len(fc.Sources))
	var skipped []SkippedSource
	seen := make(map[string]int, len(fc.Sources))
	for i, s := range fc.Sources {
		s.URL = strings.TrimSpace(s.URL)
		s.Lang = strings.TrimSpace(s.Lang)
		s.Set = strings.TrimSpace(s.Set)
		if reason := checkSource(s, seen); reason != "" {
			skipped = append(skipped, SkippedSource{Index: i, Reason: reason})
			continue
		}
		seen[s.Key()] = i
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeNoSources}
	}

	return EffectiveConfig{
		TargetDir:  absCleanFrom(base, targetDir),
		ProxyURL:   proxyURL,
		ImageProxy: fc.ImageProxy,
		SaveHTML:   saveHTML,
		ImageDelay: delay,
		Sources:    sources,
		Skipped:    skipped,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// checkSource 返回来源不可用的原因；可用时返回 ""。
// 单条来源的问题只跳过该条，整份配置仍然有效。
func checkSource(s domain.SourceConfig, seen map[string]int) string {
	if s.URL == "" {
		return "url 为空"
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Sprintf("url 必须是 http/https 地址：%q", s.URL)
	}
	if !segmentRE.MatchString(s.Lang) {
		return fmt.Sprintf("lang 无效：%q", s.Lang)
	}
	if !segmentRE.MatchString(s.Set) {
		return fmt.Sprintf("set 无效：%q", s.Set)
	}
	// 同一 lang+set 会写同一个输出文件，保留先出现的一条。
	if j, ok := seen[s.Key()]; ok {
		return fmt.Sprintf("与 sources[%d] 的 lang/set 重复：%s", j, s.Key())
	}
	return ""
}

func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
