package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// maxMemoryRecords 限制内存仓库保留的最大报告条数。
const maxMemoryRecords = 512

// ReportRecord 表示一次报告生成的落库结构。
type ReportRecord struct {
	ID        string   `json:"id"`
	Address   string   `json:"address"`
	Period    string   `json:"period"`
	Summary   string   `json:"summary"`
	Insights  []string `json:"insights"`
	Fallback  bool     `json:"fallback"`
	CreatedAt int64    `json:"created_at"`
}

// ReportRepository 抽象报告数据的持久化接口。
type ReportRepository interface {
	Save(ctx context.Context, record ReportRecord) error
	ListLatest(ctx context.Context, limit int) ([]ReportRecord, error)
	Close() error
}

// MemoryReportRepository 使用本地 JSON 文件模拟 MySQL 的效果，方便迭代开发。
type MemoryReportRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []ReportRecord
}

// NewMemoryReportRepository 创建一个内存报告仓库。
func NewMemoryReportRepository(dataDir string) (*MemoryReportRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "reports.log")
	repo := &MemoryReportRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录报告结果。
func (m *MemoryReportRepository) Save(_ context.Context, record ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开报告日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化报告记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入报告日志失败: %w", err)
	}

	m.records = append([]ReportRecord{record}, m.records...)
	if len(m.records) > maxMemoryRecords {
		m.records = m.records[:maxMemoryRecords]
	}
	return nil
}

// ListLatest 返回最近的报告记录，按时间倒序排列。
func (m *MemoryReportRepository) ListLatest(_ context.Context, limit int) ([]ReportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]ReportRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close 内存仓库没有需要释放的资源。
func (m *MemoryReportRepository) Close() error {
	return nil
}

func (m *MemoryReportRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取报告日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []ReportRecord
	for scanner.Scan() {
		var record ReportRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]ReportRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析报告日志失败: %w", err)
	}

	if len(restored) > maxMemoryRecords {
		restored = restored[:maxMemoryRecords]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLReportRepository 使用真实的 MySQL 数据库存储报告信息。
type SQLReportRepository struct {
	db *sql.DB
}

// NewSQLReportRepository 创建连接池并初始化数据表。
func NewSQLReportRepository(dsn string) (*SQLReportRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	repo := &SQLReportRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *SQLReportRepository) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS reports (
        id VARCHAR(36) PRIMARY KEY,
        address VARCHAR(64) NOT NULL,
        period VARCHAR(255) DEFAULT '',
        summary TEXT NOT NULL,
        insights TEXT NOT NULL,
        fallback TINYINT(1) NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_created_at (created_at)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化 reports 表失败: %w", err)
	}
	return nil
}

// Save 将报告记录写入 MySQL。
func (s *SQLReportRepository) Save(ctx context.Context, record ReportRecord) error {
	insights, err := json.Marshal(record.Insights)
	if err != nil {
		return fmt.Errorf("序列化洞察列表失败: %w", err)
	}

	const stmt = `INSERT INTO reports
        (id, address, period, summary, insights, fallback, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.Address,
		record.Period,
		record.Summary,
		string(insights),
		record.Fallback,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条报告记录。
func (s *SQLReportRepository) ListLatest(ctx context.Context, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, address, period, summary, insights, fallback, created_at
        FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询报告记录失败: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var (
			record   ReportRecord
			insights string
		)
		if err := rows.Scan(&record.ID, &record.Address, &record.Period, &record.Summary, &insights, &record.Fallback, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析报告记录失败: %w", err)
		}
		if err := json.Unmarshal([]byte(insights), &record.Insights); err != nil {
			record.Insights = nil
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历报告记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLReportRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
