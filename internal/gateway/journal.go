package gateway

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/tourgate/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Entry はアクセスジャーナルの1行。ディスパッチしたリクエストごとに1つ生成する。
type Entry struct {
	// RequestID はリクエストID。
	RequestID string
	// Method はHTTPメソッド。
	Method string
	// Path は受信したパス。
	Path string
	// Route は一致したルートのパターン。
	Route string
	// Service は転送先サービスの論理名。RPCルートでは空。
	Service string
	// Status は呼び出し元に返したステータスコード。
	Status int
	// CallerID は認証済みの呼び出し元のID。匿名の場合は0。
	CallerID int64
	// Duration は処理時間。
	Duration time.Duration
	// RecordedAt は記録時刻。
	RecordedAt time.Time
}

// Journal はアクセスジャーナルの書き込み先。
type Journal interface {
	// Record はエントリを1件記録する。
	Record(ctx context.Context, e Entry) error
	// Close は書き込み先を閉じる。
	Close() error
}

// nopJournal は何も記録しない。DSNが未設定のときに使う。
type nopJournal struct{}

func (nopJournal) Record(context.Context, Entry) error { return nil }

func (nopJournal) Close() error { return nil }

// SQLiteJournal はSQLiteにアクセスジャーナルを保存する。
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLiteJournal はSQLiteを開き、マイグレーションを適用する。
func OpenSQLiteJournal(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ジャーナルDBの接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別のDBになる
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ジャーナルDBのマイグレーションに失敗: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Record はエントリを1件挿入する。
func (j *SQLiteJournal) Record(ctx context.Context, e Entry) error {
	var callerID sql.NullInt64
	if e.CallerID != 0 {
		callerID = sql.NullInt64{Int64: e.CallerID, Valid: true}
	}
	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO access_journal
			(id, request_id, method, path, route, service, status, caller_id, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.RequestID, e.Method, e.Path, e.Route, e.Service, e.Status,
		callerID, e.Duration.Milliseconds(), recordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("アクセスジャーナルの挿入に失敗: %w", err)
	}
	return nil
}

// Recent は新しい順に最大limit件のエントリを返す。
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT request_id, method, path, route, service, status, caller_id, duration_ms, recorded_at
		FROM access_journal
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("アクセスジャーナルの取得に失敗: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			callerID   sql.NullInt64
			durationMS int64
			recordedAt string
		)
		if err := rows.Scan(&e.RequestID, &e.Method, &e.Path, &e.Route, &e.Service,
			&e.Status, &callerID, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("アクセスジャーナルの読み取りに失敗: %w", err)
		}
		e.CallerID = callerID.Int64
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("記録時刻の解析に失敗: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close はDB接続を閉じる。
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
