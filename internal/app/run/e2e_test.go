package run

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

const cardListHTML = `<!DOCTYPE html><html><body><div class="resultCol">
<dl class="modalCol" id="OP01-001">
  <dt>
    <div class="infoCol"><span>OP01-001</span> | <span>L</span> | <span>LEADER</span></div>
    <div class="cardName">Roronoa Zoro</div>
  </dt>
  <dd>
    <div class="frontCol"><img class="lazy" src="../images/common/noimage.png" data-src="../images/cardlist/card/OP01-001.jpg?240101" alt="Roronoa Zoro"></div>
    <div class="backCol">
      <div class="cost"><h3>Vie</h3>5</div>
      <div class="attribute"><h3>Attribut</h3><img src="../images/ico.png"><i>Tranche</i></div>
      <div class="power"><h3>Puissance</h3>5000</div>
      <div class="counter"><h3>Contre</h3>-</div>
      <div class="color"><h3>Couleur</h3>Rouge</div>
      <div class="feature"><h3>Type</h3>Supernovas/Équipage du Chapeau de paille</div>
      <div class="text"><h3>Effet</h3>[DON!! x1] [Votre tour] Tous vos Personnages gagnent +1000 de puissance.</div>
      <div class="getInfo"><h3>Extension</h3>-ROMANCE DAWN- [OP-01]</div>
    </div>
  </dd>
</dl>
<dl class="modalCol" id="OP01-001_p1">
  <dt>
    <div class="infoCol"><span>OP01-001</span> | <span>L</span> | <span>LEADER</span></div>
    <div class="cardName">Roronoa Zoro</div>
  </dt>
  <dd>
    <div class="frontCol"><img class="lazy" data-src="../images/cardlist/card/OP01-001_p1.jpg" alt="Roronoa Zoro"></div>
  </dd>
</dl>
</div></body></html>`

type siteStub struct {
	srv        *httptest.Server
	imageHits  int32
	cardlistOK int32
}

func newSiteStub(t *testing.T) *siteStub {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("生成 jpeg 失败：%v", err)
	}
	jpg := buf.Bytes()

	s := &siteStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/cardlist/":
			_ = r.ParseForm()
			if r.PostForm.Get("series") != "569101" {
				http.Error(w, "bad series", http.StatusBadRequest)
				return
			}
			atomic.AddInt32(&s.cardlistOK, 1)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, cardListHTML)
		case r.Method == http.MethodPost && r.URL.Path == "/broken/":
			http.Error(w, "maintenance", http.StatusInternalServerError)
		case r.Method == http.MethodGet && (r.URL.Path == "/images/cardlist/card/OP01-001.jpg" || r.URL.Path == "/images/cardlist/card/OP01-001_p1.jpg"):
			atomic.AddInt32(&s.imageHits, 1)
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpg)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *siteStub) effective(target string) config.EffectiveConfig {
	return config.EffectiveConfig{
		ConfigPath: filepath.Join(target, "configuration.json"),
		TargetDir:  target,
		SaveHTML:   true,
		Sources: []domain.SourceConfig{
			{URL: s.srv.URL + "/cardlist/?series=569101", Lang: "fr", Set: "op-01"},
			{URL: s.srv.URL + "/broken/?series=1", Lang: "fr", Set: "op-02"},
		},
	}
}

func (s *siteStub) deps() Deps {
	return Deps{PageClient: s.srv.Client(), ImageClient: s.srv.Client()}
}

func TestExecute_EndToEnd(t *testing.T) {
	site := newSiteStub(t)
	target := t.TempDir()

	var logs bytes.Buffer
	deps := site.deps()
	deps.Log = slog.New(slog.NewTextHandler(&logs, nil))

	rr := Execute(context.Background(), site.effective(target), deps)

	require.Equal(t, domain.ReportSummary{Sources: 2, Failed: 1, Cards: 2, ImagesDownloaded: 2}, rr.Summary)
	require.Contains(t, logs.String(), "卡表抓取完成 lang=fr set=op-01")
	require.Contains(t, logs.String(), "卡表抓取失败 lang=fr set=op-02")
	require.Equal(t, "op-01", rr.Items[0].Set)
	require.Equal(t, domain.StatusOK, rr.Items[0].Status)
	require.Equal(t, "one_piece_cards_fr_op-01.json", rr.Items[0].Output)
	require.Equal(t, domain.StatusFailed, rr.Items[1].Status)
	require.Equal(t, domain.ErrCodeFetchFailed, rr.Items[1].ErrorCode)

	b, err := os.ReadFile(filepath.Join(target, "one_piece_cards_fr_op-01.json"))
	require.NoError(t, err)
	var records []domain.CardRecord
	require.NoError(t, json.Unmarshal(b, &records))
	require.Len(t, records, 2)
	require.Equal(t, "OP01-001", records[0].ID)
	require.Equal(t, "Tranche", domain.Value(records[0].Attribute))
	require.Equal(t, "fr", records[0].Lang)
	require.Nil(t, records[1].Cost, "没有 backCol 时 cost 应缺失")
	require.Contains(t, string(b), "Équipage", "非 ASCII 字符应原样保留")

	empty, err := os.ReadFile(filepath.Join(target, "one_piece_cards_fr_op-02.json"))
	require.NoError(t, err)
	require.Equal(t, "[]", string(empty), "抓取失败的来源应写出空数组")

	for _, name := range []string{"OP01-001.jpg", "OP01-001_p1.jpg", filepath.Join("cache", "pages", "fr_op-01.html"), filepath.Join("cache", "report.json")} {
		_, err := os.Stat(filepath.Join(target, name))
		require.NoError(t, err, "期望存在 %s", name)
	}
	_, err = os.Stat(filepath.Join(target, "cache", "pages", "fr_op-02.html"))
	require.True(t, os.IsNotExist(err), "抓取失败时不应写快照")
}

func TestExecute_SecondRunSkipsExistingImages(t *testing.T) {
	site := newSiteStub(t)
	target := t.TempDir()

	_ = Execute(context.Background(), site.effective(target), site.deps())
	require.Equal(t, int32(2), atomic.LoadInt32(&site.imageHits))

	rr := Execute(context.Background(), site.effective(target), site.deps())
	require.Equal(t, int32(2), atomic.LoadInt32(&site.imageHits), "已存在的图片不应再次请求")
	require.Equal(t, 2, rr.Summary.ImagesSkipped)
	require.Equal(t, 0, rr.Summary.ImagesDownloaded)
	require.Equal(t, int32(2), atomic.LoadInt32(&site.cardlistOK), "卡表每次运行都重新抓取")
}

func TestExecute_CanceledContextMarksRemainingFailed(t *testing.T) {
	site := newSiteStub(t)
	target := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr := Execute(ctx, site.effective(target), site.deps())
	require.Len(t, rr.Items, 2)
	require.Equal(t, 2, rr.Summary.Failed)
	require.Equal(t, int32(0), atomic.LoadInt32(&site.cardlistOK))
}
