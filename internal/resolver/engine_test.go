package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OrderDeterminism(t *testing.T) {
	candidates := []models.LinkCandidate{
		{Index: 0, Title: "a", Provider: "Send", ContainerCode: "C"},
		{Index: 1, Title: "b", Provider: "Send", ContainerCode: "C"},
		{Index: 2, Title: "c", Provider: "Send", ContainerCode: "C"},
		{Index: 3, Title: "d", Provider: "Send", ContainerCode: "C"},
	}
	skipped := []models.ResolvedLink{
		{LinkCandidate: candidates[2], DownloadURL: "stored-c"},
	}
	// 解析结果乱序到达
	resolved := []models.ResolvedLink{
		{LinkCandidate: candidates[3], DownloadURL: "new-d"},
		models.NewFailedLink(candidates[1], "C"),
		{LinkCandidate: candidates[0], DownloadURL: "new-a"},
	}

	merged := Merge(candidates, skipped, resolved)

	require.Len(t, merged, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, titles(merged))
	assert.Equal(t, "stored-c", merged[2].DownloadURL)
	assert.True(t, merged[1].Failed(), "失败记录仍应返回")
	assert.Len(t, models.Persistable(merged), 3)
}

func TestMerge_DuplicateKey(t *testing.T) {
	candidates := []models.LinkCandidate{
		{Index: 0, Title: "a", Provider: "Send", ContainerCode: "C"},
		{Index: 1, Title: "b", Provider: "Send", ContainerCode: "C"},
		{Index: 2, Title: " A ", Provider: "send", ContainerCode: "c"},
	}
	resolved := []models.ResolvedLink{
		{LinkCandidate: candidates[1], DownloadURL: "new-b"},
		{LinkCandidate: candidates[0], DownloadURL: "new-a"},
	}

	merged := Merge(candidates, nil, resolved)

	require.Len(t, merged, 2, "重复的键只输出一次")
	assert.Equal(t, []string{"a", "b"}, titles(merged))
	assert.Equal(t, 0, merged[0].Index, "位置取第一次出现的行")
	assert.Equal(t, "new-a", merged[0].DownloadURL)
}

func TestMerger_PrefilterKeepsStoredTitle(t *testing.T) {
	store := newMemStore()
	store.upsert([]models.ResolvedLink{{
		LinkCandidate:  models.LinkCandidate{Title: "a", Provider: "Send", ContainerCode: "C"},
		DownloadURL:    "stored",
		ContainerTitle: "Show S01",
	}})

	skipped, _, err := NewMerger(store).Prefilter(context.Background(),
		[]models.LinkCandidate{{Title: "a", Provider: "Send", ContainerCode: "C"}}, "")
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "Show S01", skipped[0].ContainerTitle)
}

func TestMerger_Prefilter(t *testing.T) {
	store := newMemStore()
	store.upsert([]models.ResolvedLink{{
		LinkCandidate:  models.LinkCandidate{Title: "A", Provider: "Send", ContainerCode: "C"},
		DownloadURL:    "stored",
		ContainerTitle: "old title",
	}})

	candidates := []models.LinkCandidate{
		{Index: 0, Title: " a ", Provider: "SEND", ContainerCode: "c"},
		{Index: 1, Title: "b", Provider: "Send", ContainerCode: "C"},
		{Index: 2, Title: "B", Provider: "send", ContainerCode: "C"},
	}

	skipped, pending, err := NewMerger(store).Prefilter(context.Background(), candidates, "new title")
	require.NoError(t, err)

	require.Len(t, skipped, 1)
	assert.Equal(t, "stored", skipped[0].DownloadURL)
	assert.Equal(t, "new title", skipped[0].ContainerTitle, "复用记录应刷新容器标题")
	require.Len(t, pending, 1, "同一页面重复的键只解析一次")
	assert.Equal(t, 1, pending[0].Index)
}

func TestMerger_PrefilterStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk I/O error")

	_, _, err := NewMerger(store).Prefilter(context.Background(), []models.LinkCandidate{{Title: "a"}}, "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStore))
}

// 场景A: 10行中3行为Send且均为新链接
func TestEngine_ScenarioA_FilterNewLinks(t *testing.T) {
	rows := make([]fakeRow, 10)
	for i := range rows {
		provider := "pixeldrain"
		if i%3 == 0 && i > 0 {
			provider = "send.cm"
		}
		rows[i] = fakeRow{title: fmt.Sprintf("ep%02d", i), provider: provider, size: "1 GB", status: "online", url: fmt.Sprintf("https://send.cm/d/%d", i)}
	}
	page := newContainerPage("AAA", "Series", rows)
	store := newMemStore()

	result, err := NewEngine(testConfig(), store).Resolve(context.Background(), page, "Send")
	require.NoError(t, err)

	require.Len(t, result.Links, 3)
	for _, link := range result.Links {
		assert.False(t, link.Failed())
		assert.Equal(t, "Send", link.Provider)
		assert.Equal(t, "Series", link.ContainerTitle)
	}
	assert.Equal(t, 10, result.Stats.TotalRows)
	assert.Equal(t, 3, result.Stats.Matched)
	assert.Equal(t, "10 GB", result.Info.TotalSize)

	assert.Equal(t, 3, store.upsert(models.Persistable(result.Links)))

	// 幂等: 再次解析全部命中存储,不写入新行
	again, err := NewEngine(testConfig(), store).Resolve(context.Background(), page, "Send")
	require.NoError(t, err)
	assert.Equal(t, 0, store.upsert(models.Persistable(again.Links)))
	assert.Equal(t, 3, again.Stats.Skipped)
}

// 场景B: 5行全部已存储
func TestEngine_ScenarioB_AllKnown(t *testing.T) {
	rows := make([]fakeRow, 5)
	store := newMemStore()
	for i := range rows {
		rows[i] = fakeRow{title: fmt.Sprintf("ep%d", i), provider: "send.cm", url: "https://send.cm/d/x"}
		store.upsert([]models.ResolvedLink{{
			LinkCandidate:  models.LinkCandidate{Title: rows[i].title, Provider: "Send", ContainerCode: "BBB"},
			DownloadURL:    fmt.Sprintf("https://send.cm/d/stored%d", i),
			BypassURL:      models.SentinelNA,
			ContainerTitle: "BBB",
		}})
	}
	page := newContainerPage("BBB", "Better Title", rows)

	result, err := NewEngine(testConfig(), store).Resolve(context.Background(), page, "")
	require.NoError(t, err)

	clicks, _, _, _ := page.stats()
	assert.Equal(t, 0, clicks, "已知链接不应点击")
	require.Len(t, result.Links, 5)
	for i, link := range result.Links {
		assert.Equal(t, fmt.Sprintf("https://send.cm/d/stored%d", i), link.DownloadURL)
		assert.Equal(t, "Better Title", link.ContainerTitle)
	}
}

// 场景C: 弹窗加载超时
func TestEngine_ScenarioC_LoadTimeout(t *testing.T) {
	rows := []fakeRow{
		{title: "slow", provider: "send.cm", url: "https://send.cm/d/slow", loadErr: models.ErrLoadTimeout},
	}
	page := newContainerPage("CCC", "Show", rows)
	store := newMemStore()

	result, err := NewEngine(testConfig(), store).Resolve(context.Background(), page, "")
	require.NoError(t, err, "单条链接失败不应终止容器")

	require.Len(t, result.Links, 1)
	assert.Equal(t, models.SentinelError, result.Links[0].DownloadURL)
	assert.Equal(t, models.SentinelError, result.Links[0].BypassURL)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 0, store.upsert(models.Persistable(result.Links)), "失败记录不应持久化")
}

// 场景D: 第3次可绕过的解析使用 pool[2 mod 2]
func TestEngine_ScenarioD_BypassRotation(t *testing.T) {
	rows := []fakeRow{
		{title: "e1", provider: "pixeldrain", url: pixeldrainURL("x1")},
		{title: "e2", provider: "pixeldrain", url: pixeldrainURL("x2")},
		{title: "e3", provider: "pixeldrain", url: pixeldrainURL("abc123")},
	}
	page := newContainerPage("DDD", "Show", rows)

	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.BypassPool = []string{"https://h1/api/file/CODE-FILE", "https://h2/api/file/CODE-FILE"}

	result, err := NewEngine(cfg, nil).Resolve(context.Background(), page, "")
	require.NoError(t, err)

	require.Len(t, result.Links, 3)
	assert.Equal(t, "https://h1/api/file/x1", result.Links[0].BypassURL)
	assert.Equal(t, "https://h2/api/file/x2", result.Links[1].BypassURL)
	assert.Equal(t, "https://h1/api/file/abc123", result.Links[2].BypassURL)
	assert.Equal(t, 3, result.Stats.Bypassed)
}

func TestEngine_GateTimeout(t *testing.T) {
	page := newContainerPage("EEE", "Security prompt", []fakeRow{{title: "a", provider: "send.cm"}})

	_, err := NewEngine(testConfig(), nil).Resolve(context.Background(), page, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrGateTimeout))

	var gateErr *models.GateError
	require.True(t, errors.As(err, &gateErr))
	assert.Equal(t, models.GateCaptcha, gateErr.Kind)
}

type fixedLimiter int

func (l fixedLimiter) MaxPopups() int { return int(l) }

func TestEngine_BatchLimiter(t *testing.T) {
	assert.Equal(t, 3, NewEngine(testConfig(), nil, WithBatchLimiter(fixedLimiter(3))).BatchSize())
	assert.Equal(t, 8, NewEngine(testConfig(), nil, WithBatchLimiter(fixedLimiter(64))).BatchSize())
	assert.Equal(t, 8, NewEngine(testConfig(), nil, WithBatchLimiter(fixedLimiter(0))).BatchSize())
}

type countingProgress struct{ added, finished int }

func (p *countingProgress) Add(n int) error { p.added += n; return nil }
func (p *countingProgress) Finish() error   { p.finished++; return nil }

func TestEngine_Progress(t *testing.T) {
	store := newMemStore()
	store.upsert([]models.ResolvedLink{{
		LinkCandidate: models.LinkCandidate{Title: "a", Provider: "Send", ContainerCode: "FFF"},
		DownloadURL:   "stored",
	}})
	page := newContainerPage("FFF", "Show", []fakeRow{
		{title: "a", provider: "send.cm", url: "https://send.cm/d/a"},
		{title: "b", provider: "send.cm", url: "https://send.cm/d/b"},
	})

	progress := &countingProgress{}
	var total int
	engine := NewEngine(testConfig(), store, WithProgress(func(n int, _ string) Progress {
		total = n
		return progress
	}))

	_, err := engine.Resolve(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, progress.added, "跳过的链接也计入进度")
	assert.Equal(t, 1, progress.finished)
}

func TestEngine_ProgressDuplicateKeys(t *testing.T) {
	page := newContainerPage("HHH", "Show", []fakeRow{
		{title: "a", provider: "send.cm", url: "https://send.cm/d/a"},
		{title: "a", provider: "send.cm", url: "https://send.cm/d/a2"},
		{title: "b", provider: "send.cm", url: "https://send.cm/d/b"},
	})

	progress := &countingProgress{}
	var total int
	engine := NewEngine(testConfig(), nil, WithProgress(func(n int, _ string) Progress {
		total = n
		return progress
	}))

	result, err := engine.Resolve(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total, "重复的键不计入总数")
	assert.Equal(t, total, progress.added)
	assert.Len(t, result.Links, 2)
}

func TestEngine_MissingTitle(t *testing.T) {
	store := newMemStore()
	store.upsert([]models.ResolvedLink{{
		LinkCandidate:  models.LinkCandidate{Title: "a", Provider: "Send", ContainerCode: "GGG"},
		DownloadURL:    "stored",
		ContainerTitle: "Show S01",
	}})
	page := newContainerPage("GGG", "", []fakeRow{
		{title: "a", provider: "send.cm", url: "https://send.cm/d/a"},
	})

	result, err := NewEngine(testConfig(), store).Resolve(context.Background(), page, "")
	require.NoError(t, err)
	assert.False(t, result.Info.TitleFound)
	assert.Equal(t, "GGG", result.Info.Title)
	require.Len(t, result.Links, 1)
	assert.Equal(t, "Show S01", result.Links[0].ContainerTitle, "未读到标题时保留已存储的标题")
}

func titles(links []models.ResolvedLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Title)
	}
	return out
}
