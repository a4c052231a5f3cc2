package run

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

type recordObserver struct {
	startCalls int
	events     []string
	images     int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnSourceStart(idx, total int, src domain.SourceConfig) {
	o.events = append(o.events, "start:"+src.Set)
}

func (o *recordObserver) OnPhaseDone(src domain.SourceConfig, name string, fields map[string]any, dur time.Duration) {
	o.events = append(o.events, name+":"+src.Set)
}

func (o *recordObserver) OnImageDone(done, total int, res domain.ImageResult) { o.images++ }

func (o *recordObserver) OnSourceDone(idx, total int, res domain.SourceResult, dur time.Duration) {
	o.events = append(o.events, "done:"+res.Set)
}


func TestExecuteWithObserver_EmitsEventsInOrder(t *testing.T) {
	site := newSiteStub(t)
	obs := &recordObserver{}

	_ = ExecuteWithObserver(context.Background(), site.effective(t.TempDir()), site.deps(), obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	want := []string{
		"start:op-01", "fetch:op-01", "extract:op-01", "write:op-01", "images:op-01", "done:op-01",
		"start:op-02", "fetch:op-02", "extract:op-02", "write:op-02", "images:op-02", "done:op-02",
	}
	if !reflect.DeepEqual(obs.events, want) {
		t.Fatalf("事件不符合预期：\n got=%v\nwant=%v", obs.events, want)
	}
	if obs.images != 2 {
		t.Fatalf("期望 2 次图片事件，实际 %d", obs.images)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	site := newSiteStub(t)

	a := Execute(context.Background(), site.effective(t.TempDir()), site.deps())
	b := ExecuteWithObserver(context.Background(), site.effective(t.TempDir()), site.deps(), nil)

	a.StartedAt, a.FinishedAt, a.TargetDir, a.Config = time.Time{}, time.Time{}, "", ""
	b.StartedAt, b.FinishedAt, b.TargetDir, b.Config = time.Time{}, time.Time{}, "", ""
	for i := range a.Items {
		a.Items[i].ErrorMsg, b.Items[i].ErrorMsg = "", ""
	}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
