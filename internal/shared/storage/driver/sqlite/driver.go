// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"genome-engine/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

func (d *Dialect) UpsertConflict(conflictColumns []string, updateExprs []string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflictColumns, ", "), strings.Join(updateExprs, ", "))
}

func (d *Dialect) SupportsNullsLast() bool {
	return false
}

func (d *Dialect) NullsLastClause() string {
	return ""
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:engine.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（等价于 PostgreSQL 迁移文件）
const schema = `
-- genomes
CREATE TABLE IF NOT EXISTS genomes (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    user_id VARCHAR(64),
    data TEXT NOT NULL,
    metrics TEXT,
    status VARCHAR(32) DEFAULT 'draft',
    version INTEGER NOT NULL DEFAULT 1,
    repository_url TEXT,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

-- campaigns
CREATE TABLE IF NOT EXISTS campaigns (
    id VARCHAR(64) PRIMARY KEY,
    genome_id VARCHAR(64) NOT NULL REFERENCES genomes(id),
    name VARCHAR(200) NOT NULL,
    description TEXT,
    target_metric VARCHAR(64) NOT NULL,
    configuration TEXT NOT NULL,
    status VARCHAR(32) DEFAULT 'pending',
    created_at DATETIME DEFAULT (datetime('now'))
);

-- campaign_runs
CREATE TABLE IF NOT EXISTS campaign_runs (
    id VARCHAR(64) PRIMARY KEY,
    campaign_id VARCHAR(64) NOT NULL REFERENCES campaigns(id),
    status VARCHAR(32) DEFAULT 'queued',
    results TEXT,
    started_at DATETIME DEFAULT (datetime('now')),
    completed_at DATETIME
);

-- mutations
CREATE TABLE IF NOT EXISTS mutations (
    id VARCHAR(64) PRIMARY KEY,
    campaign_id VARCHAR(64) NOT NULL REFERENCES campaigns(id),
    genome_id VARCHAR(64) NOT NULL REFERENCES genomes(id),
    sequence INTEGER NOT NULL,
    mutation_type VARCHAR(64),
    original_code TEXT,
    mutated_code TEXT,
    diff TEXT,
    description TEXT,
    explanation TEXT,
    status VARCHAR(32) DEFAULT 'proposed',
    metrics_before TEXT,
    metrics_after TEXT,
    safety_score REAL,
    confidence_score REAL,
    composite_score REAL,
    applied_at DATETIME,
    applied_by VARCHAR(64),
    created_at DATETIME DEFAULT (datetime('now')),
    UNIQUE (campaign_id, sequence)
);

-- mutation_tests
CREATE TABLE IF NOT EXISTS mutation_tests (
    id VARCHAR(64) PRIMARY KEY,
    mutation_id VARCHAR(64) NOT NULL REFERENCES mutations(id) ON DELETE CASCADE,
    pass_rate REAL,
    latency_ms REAL,
    cpu_usage REAL,
    memory_usage REAL,
    cost_per_request REAL,
    test_results TEXT,
    created_at DATETIME DEFAULT (datetime('now'))
);

-- mutation_history
CREATE TABLE IF NOT EXISTS mutation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mutation_id VARCHAR(64) REFERENCES mutations(id),
    campaign_id VARCHAR(64),
    action VARCHAR(64) NOT NULL,
    actor VARCHAR(64) NOT NULL,
    metadata TEXT,
    created_at DATETIME DEFAULT (datetime('now'))
);

-- genome_suggestions
CREATE TABLE IF NOT EXISTS genome_suggestions (
    id VARCHAR(64) PRIMARY KEY,
    genome_id VARCHAR(64) NOT NULL REFERENCES genomes(id),
    suggestion_type VARCHAR(64) NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT,
    template_patch TEXT,
    confidence REAL DEFAULT 0,
    priority VARCHAR(32) DEFAULT 'medium',
    status VARCHAR(32) DEFAULT 'new',
    created_at DATETIME DEFAULT (datetime('now')),
    UNIQUE (genome_id, suggestion_type, title)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_genome ON campaigns(genome_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_campaign_runs_campaign ON campaign_runs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_campaign_runs_status ON campaign_runs(status);
CREATE INDEX IF NOT EXISTS idx_mutations_campaign ON mutations(campaign_id);
CREATE INDEX IF NOT EXISTS idx_mutations_genome ON mutations(genome_id);
CREATE INDEX IF NOT EXISTS idx_mutation_tests_mutation ON mutation_tests(mutation_id);
CREATE INDEX IF NOT EXISTS idx_history_mutation ON mutation_history(mutation_id);
CREATE INDEX IF NOT EXISTS idx_history_campaign ON mutation_history(campaign_id);
CREATE INDEX IF NOT EXISTS idx_suggestions_genome ON genome_suggestions(genome_id);
`
