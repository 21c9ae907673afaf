package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/RecoveryAshes/FcLinkcrack/internal/utils"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DriverName sqlite驱动名称
const DriverName = "sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS links (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT NOT NULL,
	provider        TEXT NOT NULL,
	size            TEXT NOT NULL DEFAULT 'N/A',
	status          TEXT NOT NULL DEFAULT 'offline',
	download_url    TEXT NOT NULL,
	bypass_url      TEXT NOT NULL DEFAULT 'N/A',
	container_code  TEXT NOT NULL,
	container_title TEXT NOT NULL DEFAULT '',
	title_key       TEXT NOT NULL,
	provider_key    TEXT NOT NULL,
	container_key   TEXT NOT NULL,
	created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (title_key, provider_key, container_key)
);
CREATE INDEX IF NOT EXISTS idx_links_container ON links (container_key);
CREATE INDEX IF NOT EXISTS idx_links_provider ON links (provider_key);
`

const linkColumns = `title, provider, size, status, download_url, bypass_url, container_code, container_title`

// linkRow 数据库行
type linkRow struct {
	Title          string `db:"title"`
	Provider       string `db:"provider"`
	Size           string `db:"size"`
	Status         string `db:"status"`
	DownloadURL    string `db:"download_url"`
	BypassURL      string `db:"bypass_url"`
	ContainerCode  string `db:"container_code"`
	ContainerTitle string `db:"container_title"`
}

func (r linkRow) toLink() models.ResolvedLink {
	return models.ResolvedLink{
		LinkCandidate: models.LinkCandidate{
			Title:         r.Title,
			Provider:      r.Provider,
			Size:          r.Size,
			Status:        r.Status,
			ContainerCode: r.ContainerCode,
		},
		DownloadURL:    r.DownloadURL,
		BypassURL:      r.BypassURL,
		ContainerTitle: r.ContainerTitle,
	}
}

// ContainerSummary 按容器汇总的链接数量
type ContainerSummary struct {
	Code      string `db:"container_code"`
	Title     string `db:"container_title"`
	Links     int    `db:"links"`
	Bypassed  int    `db:"bypassed"`
	Providers string `db:"providers"` // 逗号分隔
}

// Store 已解析链接的持久化存储
// 以规范化的 (title, provider, container) 三元组去重,重复写入被忽略
type Store struct {
	db *sqlx.DB
}

// New 使用已有连接创建存储 (不执行建表)
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open 打开(必要时创建)sqlite数据库并建表
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: 创建数据库目录失败: %w", models.ErrStore, err)
		}
	}

	db, err := sqlx.Open(DriverName, path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: 打开数据库失败: %w", models.ErrStore, err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	utils.Debugf("数据库已打开: %s", path)
	return s, nil
}

// Migrate 建表和索引
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: 初始化表结构失败: %w", models.ErrStore, err)
	}
	return nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists 判断主键是否已存在
func (s *Store) Exists(ctx context.Context, key models.LinkKey) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM links WHERE title_key = ? AND provider_key = ? AND container_key = ?`

	if err := s.db.GetContext(ctx, &count, query, key.Title, key.Provider, key.ContainerCode); err != nil {
		return false, fmt.Errorf("%w: 查询链接是否存在失败: %w", models.ErrStore, err)
	}
	return count > 0, nil
}

// Get 按主键查询,不存在时返回 nil, nil
func (s *Store) Get(ctx context.Context, key models.LinkKey) (*models.ResolvedLink, error) {
	var row linkRow
	query := `SELECT ` + linkColumns + ` FROM links
		WHERE title_key = ? AND provider_key = ? AND container_key = ?`

	err := s.db.GetContext(ctx, &row, query, key.Title, key.Provider, key.ContainerCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: 查询链接失败: %w", models.ErrStore, err)
	}

	link := row.toLink()
	return &link, nil
}

// GetByContainer 查询某个容器的所有链接,按写入顺序
func (s *Store) GetByContainer(ctx context.Context, containerCode string) ([]models.ResolvedLink, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE container_key = ? ORDER BY id`
	return s.selectLinks(ctx, query, models.NewLinkKey("", "", containerCode).ContainerCode)
}

// All 查询所有链接,按容器和写入顺序
func (s *Store) All(ctx context.Context) ([]models.ResolvedLink, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY container_key, id`
	return s.selectLinks(ctx, query)
}

func (s *Store) selectLinks(ctx context.Context, query string, args ...any) ([]models.ResolvedLink, error) {
	var rows []linkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: 查询链接列表失败: %w", models.ErrStore, err)
	}

	links := make([]models.ResolvedLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.toLink())
	}
	return links, nil
}

// UpsertIgnoreDuplicates 在一个事务中写入链接,已存在的主键被忽略
// 返回实际新增的行数。解析失败的记录不应传入,调用方先用 models.Persistable 过滤
func (s *Store) UpsertIgnoreDuplicates(ctx context.Context, links []models.ResolvedLink) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: 开启事务失败: %w", models.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO links (`+linkColumns+`, title_key, provider_key, container_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: 预编译插入语句失败: %w", models.ErrStore, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, link := range links {
		key := link.Key()
		result, err := stmt.ExecContext(ctx,
			link.Title,
			link.Provider,
			link.Size,
			link.Status,
			link.DownloadURL,
			link.BypassURL,
			link.ContainerCode,
			link.ContainerTitle,
			key.Title,
			key.Provider,
			key.ContainerCode,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: 写入链接 %s 失败: %w", models.ErrStore, key, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: 提交事务失败: %w", models.ErrStore, err)
	}
	return inserted, nil
}

// BackfillContainerTitle 刷新某个容器已存储链接的标题
// 返回被更新的行数; 占位标题或容器代码本身不会覆盖已有标题
func (s *Store) BackfillContainerTitle(ctx context.Context, containerCode, title string) (int64, error) {
	if !models.HasContainerTitle(title) || strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(containerCode)) {
		return 0, nil
	}

	query := `UPDATE links SET container_title = ? WHERE container_key = ? AND container_title <> ?`

	result, err := s.db.ExecContext(ctx, query, title, models.NewLinkKey("", "", containerCode).ContainerCode, title)
	if err != nil {
		return 0, fmt.Errorf("%w: 更新容器标题失败: %w", models.ErrStore, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: 读取更新行数失败: %w", models.ErrStore, err)
	}
	return n, nil
}

// Containers 按容器汇总,按首次写入顺序
func (s *Store) Containers(ctx context.Context) ([]ContainerSummary, error) {
	query := `
		SELECT container_code,
		       MAX(container_title) AS container_title,
		       COUNT(*) AS links,
		       SUM(CASE WHEN bypass_url NOT IN ('N/A', 'ERROR', '') THEN 1 ELSE 0 END) AS bypassed,
		       GROUP_CONCAT(DISTINCT provider) AS providers
		FROM links
		GROUP BY container_key
		ORDER BY MIN(id)`

	var summaries []ContainerSummary
	if err := s.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("%w: 汇总容器失败: %w", models.ErrStore, err)
	}
	return summaries, nil
}
