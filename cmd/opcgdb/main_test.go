package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/opcgdb/internal/app/run"
	"github.com/John-Robertt/opcgdb/internal/catalog"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

const pageHTML = `<html><body>
<dl class="modalCol" id="OP09-001">
  <dt><div class="infoCol"><span>OP09-001</span> | <span>L</span> | <span>LEADER</span></div><div class="cardName">Shanks</div></dt>
  <dd>
    <div class="frontCol"><img class="lazy" data-src="../images/OP09-001.png?1" alt="Shanks"></div>
    <div class="backCol"><div class="cost"><h3>Vie</h3>5</div><div class="color"><h3>Couleur</h3>Rouge</div></div>
  </dd>
</dl>
<dl class="modalCol" id="OP09-004_p1">
  <dt><div class="infoCol"><span>OP09-004</span> | <span>SR</span> | <span>PERSONNAGE</span></div><div class="cardName">Lucky Roux</div></dt>
  <dd><div class="frontCol"><img class="lazy" data-src="../images/OP09-004_p1.png" alt="Lucky Roux"></div></dd>
</dl>
<dl class="modalCol" id="OP09-004">
  <dt><div class="infoCol"><span>OP09-004</span> | <span>SR</span> | <span>PERSONNAGE</span></div><div class="cardName">Lucky Roux</div></dt>
</dl>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("生成 png 失败：%v", err)
	}
	img := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/fr/cardlist/":
			_, _ = io.WriteString(w, pageHTML)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/fr/images/"):
			_, _ = w.Write(img)
		default:
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir string, srv *httptest.Server) string {
	t.Helper()
	cfg := `{
  // JSON5：允许注释与尾逗号
  target_dir: "data",
  image_delay_ms: 0,
  sources: [
    {url: "` + srv.URL + `/fr/cardlist/?series=569109", lang: "fr", set: "op-09"},
    {url: "` + srv.URL + `/down/?series=1", lang: "fr", set: "op-99"},
  ],
}`
	path := filepath.Join(dir, "configuration.json5")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	return path
}

type harness struct {
	app    *cliApp
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(srv *httptest.Server) *harness {
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = &cliApp{stdout: h.stdout, stderr: h.stderr}
	if srv != nil {
		h.app.deps = run.Deps{PageClient: srv.Client(), ImageClient: srv.Client()}
	}
	return h
}

func (h *harness) exec(args ...string) int {
	return h.app.execute(context.Background(), args)
}

func TestCLI_Run_StdoutOnlyRunReportJSON(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, srv)

	h := newHarness(srv)
	code := h.exec("run", "--config", cfg)
	require.Equal(t, 0, code, "stderr=%s", h.stderr.String())

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &rr), "stdout=%q", h.stdout.String())
	require.Equal(t, domain.ReportSummary{Sources: 2, Failed: 1, Cards: 3, ImagesDownloaded: 2}, rr.Summary)
	require.NotContains(t, h.stdout.String(), "配置（生效）")
	require.Contains(t, h.stderr.String(), "完成：sources=2 failed=1")

	target := filepath.Join(dir, "data")
	for _, name := range []string{"one_piece_cards_fr_op-09.json", "one_piece_cards_fr_op-99.json", "OP09-001.png", "OP09-004_p1.png"} {
		_, err := os.Stat(filepath.Join(target, name))
		require.NoError(t, err, "期望存在 %s", name)
	}
}

func TestCLI_Run_StrictFailsOnFetchError(t *testing.T) {
	srv := newSite(t)
	cfg := writeConfig(t, t.TempDir(), srv)

	h := newHarness(srv)
	require.Equal(t, 1, h.exec("run", "--config", cfg, "--strict"))
}

func TestCLI_Run_ConfigNotFoundEmitsReport(t *testing.T) {
	h := newHarness(nil)
	code := h.exec("run", "--config", filepath.Join(t.TempDir(), "missing.json"))
	require.Equal(t, 1, code)

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &rr))
	require.Len(t, rr.Items, 1)
	require.Equal(t, domain.ErrCodeConfigNotFound, rr.Items[0].ErrorCode)
	require.Equal(t, 1, rr.Summary.Failed)
}

func TestCLI_Extract_File(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(pageHTML), 0o644))

	h := newHarness(nil)
	require.Equal(t, 0, h.exec("extract", page, "--lang", "fr", "--set", "op-09"))

	var records []domain.CardRecord
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &records))
	require.Len(t, records, 3)
	require.Equal(t, "Shanks", domain.Value(records[0].Name))
	require.Equal(t, "op-09", records[2].Set)
}

func TestCLI_Extract_URLFailureYieldsEmptyArray(t *testing.T) {
	srv := newSite(t)
	h := newHarness(srv)
	require.Equal(t, 0, h.exec("extract", "--url", srv.URL+"/down/?series=1", "--lang", "fr", "--set", "op-01"))
	require.Equal(t, "[]\n", h.stdout.String())
	require.Contains(t, h.stderr.String(), "卡表抓取失败")
}

func TestCLI_Extract_CachedSnapshot(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, srv)

	h := newHarness(srv)
	require.Equal(t, 0, h.exec("run", "--config", cfg, "--save-html"))

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("extract", "--config", cfg, "--cached", "--lang", "fr", "--set", "op-09"))
	var records []domain.CardRecord
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &records))
	require.Len(t, records, 3)
}

func TestCLI_Extract_RequiresOneInput(t *testing.T) {
	h := newHarness(nil)
	require.Equal(t, 2, h.exec("extract", "--lang", "fr", "--set", "op-01"))
	require.Contains(t, h.stderr.String(), "需要且只能指定一个输入")
}

func TestCLI_ImportAndSearch(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, srv)
	db := filepath.Join(dir, "cards.db")

	h := newHarness(srv)
	require.Equal(t, 0, h.exec("run", "--config", cfg))

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("import", "--config", cfg, "--db", db), "stderr=%s", h.stderr.String())
	cards, err := catalog.LoadJSON(filepath.Join(dir, "data", catalog.ImportedFileName))
	require.NoError(t, err)
	require.Len(t, cards, 3)

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("search", "--config", cfg, "--json", "r:SR"))
	var found []catalog.Card
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &found))
	require.Len(t, found, 2)

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("search", "--db", db, "--json", "--unique", "OP09-004"))
	found = nil
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &found))
	require.Len(t, found, 1)
	require.Equal(t, "OP09-004", found[0].ID, "--unique 应保留普通版")

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("search", "--db", db, "--json", "--printings", "OP09-004_p1"))
	found = nil
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &found))
	require.Len(t, found, 2)
	for _, c := range found {
		require.Equal(t, "OP09-004", c.ReferenceID)
	}

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("search", "--config", cfg, "--json", "--printings", "OP09-001"))
	found = nil
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &found))
	require.Len(t, found, 1)

	h = newHarness(nil)
	require.Equal(t, 0, h.exec("search", "--config", cfg, "shanks"))
	require.Contains(t, h.stdout.String(), "OP09-001  Shanks  [L fr op-09]")
}

func TestCLI_Search_UnknownField(t *testing.T) {
	dir := t.TempDir()
	_, err := catalog.WriteJSON(dir, nil)
	require.NoError(t, err)

	h := newHarness(nil)
	require.Equal(t, 2, h.exec("search", "--target-dir", dir, "color:red"))
	require.Contains(t, h.stderr.String(), "未知字段")
}
