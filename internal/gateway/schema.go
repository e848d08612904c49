package gateway

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。report_requestsはレポート要求の監査ログで、
// レスポンスとは独立した非同期書き込みのみが行われる。
const schema = `
CREATE TABLE IF NOT EXISTS report_requests (
    id TEXT PRIMARY KEY,
    requested_by TEXT NOT NULL,
    report_name TEXT NOT NULL,
    params TEXT NOT NULL DEFAULT '{}',
    format TEXT NOT NULL DEFAULT 'json',
    requested_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_report_requests_requested_at
    ON report_requests(requested_at);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
