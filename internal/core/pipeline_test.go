package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/browser"
	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/report"
	"github.com/RecoveryAshes/FcLinkcrack/internal/resolver"
	"github.com/RecoveryAshes/FcLinkcrack/internal/snapshot"
	"github.com/RecoveryAshes/FcLinkcrack/internal/store"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// htmlPage 静态文档 + 按钮 data-href 模拟弹窗
type htmlPage struct {
	*snapshot.Document
}

func (p htmlPage) ClickForPopup(_ context.Context, control resolver.Element, _ time.Duration) (resolver.Page, error) {
	href, ok, _ := control.Attribute("data-href")
	if !ok {
		return nil, fmt.Errorf("%w: 没有弹窗", models.ErrPopupTimeout)
	}
	return &popupPage{url: href}, nil
}

type popupPage struct {
	url string
}

func (p *popupPage) WaitForSelector(context.Context, string, time.Duration) error { return nil }
func (p *popupPage) Query(string) (resolver.Element, error)                       { return nil, nil }
func (p *popupPage) QueryAll(string) ([]resolver.Element, error)                  { return nil, nil }
func (p *popupPage) ClickForPopup(context.Context, resolver.Element, time.Duration) (resolver.Page, error) {
	return nil, errors.New("not supported")
}
func (p *popupPage) WaitLoad(context.Context, time.Duration) error { return nil }
func (p *popupPage) URL() (string, error)                          { return p.url, nil }
func (p *popupPage) Close() error                                  { return nil }

// fakeOpener 按URL返回预置的HTML
type fakeOpener struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	opened int
	closed int
}

func (o *fakeOpener) OpenContainer(_ context.Context, containerURL string) (resolver.Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.errs[containerURL]; err != nil {
		return nil, err
	}
	html, ok := o.pages[containerURL]
	if !ok {
		return nil, errors.New("page not found")
	}
	doc, err := snapshot.Parse(strings.NewReader(html), containerURL)
	if err != nil {
		return nil, err
	}
	o.opened++
	return htmlPage{doc}, nil
}

func (o *fakeOpener) CloseContainer(resolver.Page) {
	o.mu.Lock()
	o.closed++
	o.mu.Unlock()
}

type containerRow struct {
	title    string
	provider string
	size     string
	href     string
}

func containerHTML(title string, rows []containerRow) string {
	var b strings.Builder
	b.WriteString("<html><body><h2>" + title + "</h2><table>")
	for _, r := range rows {
		button := `<button class="download">Download</button>`
		if r.href != "" {
			button = fmt.Sprintf(`<button class="download" data-href="%s">Download</button>`, r.href)
		}
		fmt.Fprintf(&b, `<tr class="kwj3"><td title="%s"><a class="external_link">%s</a></td><td></td><td>%s</td><td class="status"><i class="online"></i></td><td>%s</td></tr>`,
			r.title, r.provider, r.size, button)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func testPipelineConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Store.Path = filepath.Join(t.TempDir(), "links.db")
	cfg.Resolver.SelectorWait = 50 * time.Millisecond
	cfg.Resolver.PopupWait = 50 * time.Millisecond
	cfg.Resolver.PageLoad = 50 * time.Millisecond
	cfg.Resolver.BatchDelay = 0
	cfg.Batch.Delay = 0
	return cfg
}

func openTestStore(t *testing.T, cfg *Config) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

const containerA = "https://filecrypt.co/Container/ABC123.html"

func scenarioRows() []containerRow {
	return []containerRow{
		{"Show.S01E01.mkv", "send.cm", "1 GB", "https://send.cm/d/1"},
		{"Show.S01E02.mkv", "rapidgator", "2 GB", "https://rapidgator.net/file/2"},
		{"Show.S01E03.mkv", "sendit.cloud", "1 GB", ""},
	}
}

func TestRunner_Run(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{pages: map[string]string{containerA: containerHTML("Show S01", scenarioRows())}}

	var out bytes.Buffer
	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st, Out: &out})

	result, err := runner.Run(context.Background(), containerA)
	require.NoError(t, err)

	stats := result.Report.Stats
	assert.Equal(t, models.PassStatusCompleted, result.Report.Status)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Inserted)
	assert.Len(t, result.Links, 3)
	require.Len(t, result.Report.FailedLinks, 1)
	assert.Equal(t, "Show.S01E03.mkv", result.Report.FailedLinks[0].Title)
	assert.Equal(t, 1, opener.opened)
	assert.Equal(t, 1, opener.closed)

	stored, err := st.GetByContainer(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Len(t, stored, 2, "失败记录不应入库")
	assert.Equal(t, "Show S01", stored[0].ContainerTitle)

	require.Len(t, result.Files, 1)
	sheet, err := report.ReadLinks(result.Files[0])
	require.NoError(t, err)
	assert.Len(t, sheet, 2)

	saved, err := utils.LoadPassReport(result.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, result.Report.PassID, saved.PassID)
	assert.Contains(t, out.String(), "Show S01")

	// 再次运行: 已入库的两行跳过,失败行重试
	again, err := runner.Run(context.Background(), containerA)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Report.Stats.Skipped)
	assert.Equal(t, 0, again.Report.Stats.Resolved)
	assert.Equal(t, 1, again.Report.Stats.Failed)
	assert.Equal(t, 0, again.Report.Stats.Inserted)

	sheet, err = report.ReadLinks(result.Files[0])
	require.NoError(t, err)
	assert.Len(t, sheet, 2, "重复导出不产生重复行")
}

func TestRunner_MissingTitleKeepsStoredTitle(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.Output.Mode = string(report.ModeDB)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{pages: map[string]string{containerA: containerHTML("Show S01", scenarioRows())}}
	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st, Out: &bytes.Buffer{}})

	_, err := runner.Run(context.Background(), containerA)
	require.NoError(t, err)

	// 第二次扫描页面没有标题
	opener.pages[containerA] = containerHTML("", scenarioRows())
	again, err := runner.Run(context.Background(), containerA)
	require.NoError(t, err)
	assert.False(t, again.Report.Info.TitleFound)
	assert.Equal(t, "ABC123", again.Report.Info.Title)

	stored, err := st.GetByContainer(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, link := range stored {
		assert.Equal(t, "Show S01", link.ContainerTitle, "已存储的标题不应被容器代码覆盖")
	}
}

func TestRunner_ProviderFilterAndDBMode(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.Output.Mode = string(report.ModeDB)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{pages: map[string]string{containerA: containerHTML("Show S01", scenarioRows())}}

	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st, Provider: "Rapidgator"})
	result, err := runner.Run(context.Background(), containerA)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Report.Stats.Matched)
	assert.Equal(t, 1, result.Report.Stats.Inserted)
	assert.Empty(t, result.Files)

	all, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Rapidgator", all[0].Provider)
}

func TestRunner_LayoutMismatch(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{pages: map[string]string{containerA: "<html><body><h2>Nothing</h2></body></html>"}}

	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st})
	result, err := runner.Run(context.Background(), containerA)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLayoutMismatch)
	assert.Equal(t, models.PassStatusFailed, result.Report.Status)
	assert.FileExists(t, result.ReportPath)
	assert.Equal(t, 1, opener.closed, "失败时也要关闭页面")
}

type countingRestarter struct {
	restarts int
	err      error
}

func (r *countingRestarter) Restart() error {
	r.restarts++
	return r.err
}

func TestBatchRunner_RunAll(t *testing.T) {
	containerB := "https://filecrypt.co/Container/DEF456.html"
	containerC := "https://filecrypt.co/Container/GHI789.html"

	cfg := testPipelineConfig(t)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{
		pages: map[string]string{
			containerA: containerHTML("Show S01", scenarioRows()),
			containerC: containerHTML("Other", []containerRow{{"Movie.mkv", "send.cm", "3 GB", "https://send.cm/d/9"}}),
		},
		errs: map[string]error{containerB: fmt.Errorf("打开失败: %w", browser.ErrBrowserCrashed)},
	}
	restarter := &countingRestarter{}

	var out bytes.Buffer
	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st})
	batch := NewBatchRunner(runner, restarter, cfg.Batch, &out)

	summary, err := batch.RunAll(context.Background(), []string{containerA, containerB, containerC})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalURLs)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailCount)
	assert.Equal(t, 3, summary.TotalInserted)
	assert.Equal(t, 1, restarter.restarts)
	assert.False(t, summary.Results[1].Success)
	assert.Contains(t, out.String(), "DEF456")
}

func TestBatchRunner_StopOnError(t *testing.T) {
	containerB := "https://filecrypt.co/Container/DEF456.html"

	cfg := testPipelineConfig(t)
	cfg.Batch.ContinueOnError = false
	st := openTestStore(t, cfg)
	opener := &fakeOpener{
		pages: map[string]string{containerB: containerHTML("B", scenarioRows())},
		errs:  map[string]error{containerA: errors.New("network down")},
	}

	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st})
	summary, err := NewBatchRunner(runner, nil, cfg.Batch, nil).RunAll(context.Background(), []string{containerA, containerB})
	require.NoError(t, err)
	assert.Len(t, summary.Results, 1)
	assert.Equal(t, 0, opener.opened)
}

func TestBatchRunner_RestartFailure(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := openTestStore(t, cfg)
	opener := &fakeOpener{errs: map[string]error{containerA: browser.ErrBrowserCrashed}}

	runner := NewRunner(RunnerOptions{Config: cfg, Opener: opener, Store: st})
	restarter := &countingRestarter{err: errors.New("no chrome")}
	_, err := NewBatchRunner(runner, restarter, cfg.Batch, nil).RunAll(context.Background(), []string{containerA, containerA})
	assert.Error(t, err)
	assert.Equal(t, 1, restarter.restarts)
}

func TestBatchRunner_Canceled(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := openTestStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(RunnerOptions{Config: cfg, Opener: &fakeOpener{}, Store: st})
	summary, err := NewBatchRunner(runner, nil, cfg.Batch, nil).RunAll(ctx, []string{containerA})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Results)
}
