package vulndb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"TanZhen/internal/utils"

	_ "github.com/mattn/go-sqlite3"
)

// Store 以SQLite持久化特征库，扫描时读取为只读的 Catalog
type Store struct {
	db     *sql.DB
	path   string
	logger *utils.Logger
}

// ImportRecord 一次特征库导入记录
type ImportRecord struct {
	ID         int
	ImportedAt string
	Source     string
	Count      int
}

func OpenStore(dbPath string) (*Store, error) {
	logger := utils.NewLogger("vulndb")

	// 确保目录存在
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	store := &Store{
		db:     db,
		path:   dbPath,
		logger: logger,
	}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}

	return store, nil
}

func (s *Store) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signatures (
		position INTEGER PRIMARY KEY,
		sig_id TEXT UNIQUE NOT NULL,
		affected_service TEXT NOT NULL,
		match_pattern TEXT,
		match_regex TEXT,
		product TEXT,
		version_predicate TEXT,
		severity TEXT NOT NULL,
		description TEXT,
		remediation TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_affected_service ON signatures(affected_service);

	CREATE TABLE IF NOT EXISTS import_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		source TEXT,
		records_added INTEGER
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ReplaceCatalog 用新的特征库整体替换表内容，保留特征库顺序
func (s *Store) ReplaceCatalog(catalog *Catalog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM signatures`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO signatures
		(position, sig_id, affected_service, match_pattern, match_regex, product, version_predicate, severity, description, remediation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range catalog.Records() {
		_, err := stmt.Exec(i, rec.ID, rec.AffectedService, rec.MatchPattern, rec.MatchRegex,
			rec.Product, rec.VersionPredicate, rec.Severity, rec.Description, rec.Remediation)
		if err != nil {
			return fmt.Errorf("写入规则 %s 失败: %w", rec.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO import_history (source, records_added) VALUES (?, ?)`,
		catalog.Source(), catalog.Len()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("特征库已导入 %s，共 %d 条规则", s.path, catalog.Len())
	return nil
}

// LoadCatalog 读取全部规则并校验，任一行格式错误都返回 *model.CatalogError
func (s *Store) LoadCatalog() (*Catalog, error) {
	rows, err := s.db.Query(`
		SELECT sig_id, affected_service, match_pattern, match_regex, product,
		       version_predicate, severity, description, remediation
		FROM signatures
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SignatureRecord
	for rows.Next() {
		var rec SignatureRecord
		var pattern, regex, product, predicate, description, remediation sql.NullString

		if err := rows.Scan(&rec.ID, &rec.AffectedService, &pattern, &regex, &product,
			&predicate, &rec.Severity, &description, &remediation); err != nil {
			return nil, err
		}

		rec.MatchPattern = pattern.String
		rec.MatchRegex = regex.String
		rec.Product = product.String
		rec.VersionPredicate = predicate.String
		rec.Description = description.String
		rec.Remediation = remediation.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewCatalog("sqlite:"+s.path, records)
}

// HasData 检查数据库中是否有规则
func (s *Store) HasData() (bool, error) {
	count, err := s.Count()
	return count > 0, err
}

// Count 规则总数
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM signatures").Scan(&count)
	return count, err
}

// GetImportHistory 最近10次导入记录
func (s *Store) GetImportHistory() ([]ImportRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, imported_at, source, records_added
		FROM import_history
		ORDER BY id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []ImportRecord
	for rows.Next() {
		var r ImportRecord
		if err := rows.Scan(&r.ID, &r.ImportedAt, &r.Source, &r.Count); err != nil {
			return nil, err
		}
		history = append(history, r)
	}

	return history, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
