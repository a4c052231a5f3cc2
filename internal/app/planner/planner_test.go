package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/John-Robertt/opcgdb/internal/domain"
)

const base = "https://fr.onepiece-cardgame.com/cardlist/?series=569109"

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestReadDirState_MissingDirIsEmpty(t *testing.T) {
	st, err := ReadDirState(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(st.ExistingNames) != 0 {
		t.Fatalf("期望空状态：%+v", st)
	}
}

func TestPlanImages(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "OP09-002.png"))

	st, err := ReadDirState(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	records := []domain.CardRecord{
		{ID: "OP09-001", Image: domain.Str("../images/cardlist/card/OP09-001.png?250214")},
		{ID: "OP09-002", Image: domain.Str("../images/cardlist/card/OP09-002.png?250214")},
		{ID: "OP09-003"},
		{ID: "OP09-004", Image: domain.Str("")},
		{ID: "OP09-005", Image: domain.Str("https://cdn.example.com/OP09-005")},
		{ID: "OP09-001", Image: domain.Str("../images/cardlist/card/OP09-001.png")},
		{ID: "", Image: domain.Str("/img/x.png")},
	}

	got := PlanImages(base, records, st)
	want := []domain.ImagePlan{
		{ID: "OP09-001", URL: "https://fr.onepiece-cardgame.com/images/cardlist/card/OP09-001.png?250214", File: "OP09-001.png"},
		{ID: "OP09-002", URL: "https://fr.onepiece-cardgame.com/images/cardlist/card/OP09-002.png?250214", File: "OP09-002.png", Skip: true},
		{ID: "OP09-005", URL: "https://cdn.example.com/OP09-005", File: "OP09-005.jpg"},
		{ID: "OP09-001", URL: "https://fr.onepiece-cardgame.com/images/cardlist/card/OP09-001.png", File: "OP09-001.png", Skip: true},
		{ID: "", URL: "https://fr.onepiece-cardgame.com/img/x.png"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(domain.ImagePlan{}, "Err")); diff != "" {
		t.Fatalf("计划不符合预期 (-want +got):\n%s", diff)
	}
	for i, p := range got {
		if (p.ID == "") != (p.Err != nil) {
			t.Fatalf("plan[%d] Err 不符合预期：%v", i, p.Err)
		}
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct{ base, href, want string }{
		{base, "/img/op01-001.png", "https://fr.onepiece-cardgame.com/img/op01-001.png"},
		{base, "//cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{base, "http://other.example.com/a.png", "http://other.example.com/a.png"},
		{"", "../a.png", "../a.png"},
		{base, "  ", ""},
	}
	for _, tc := range cases {
		if got := ResolveURL(tc.base, tc.href); got != tc.want {
			t.Fatalf("ResolveURL(%q, %q) 期望 %q，实际 %q", tc.base, tc.href, tc.want, got)
		}
	}
}
