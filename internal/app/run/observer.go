package run

import (
	"time"

	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

// Observer 把运行进度从执行流程中解耦出来。
// run 包只发事件，不做任何输出（stdout 留给 JSON report）。
// 来源按顺序处理，事件总是来自调用 ExecuteWithObserver 的 goroutine。
type Observer interface {
	OnStart(eff config.EffectiveConfig)
	OnSourceStart(idx, total int, src domain.SourceConfig)
	// OnPhaseDone 在来源的每个阶段（fetch/extract/write/images）结束时调用。
	OnPhaseDone(src domain.SourceConfig, name string, fields map[string]any, dur time.Duration)
	OnImageDone(done, total int, res domain.ImageResult)
	OnSourceDone(idx, total int, res domain.SourceResult, dur time.Duration)
}
