package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1本に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testMigrations はテスト用のマイグレーションファイル群。
func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000002_add_column.up.sql": {
			Data: []byte(`ALTER TABLE entries ADD COLUMN note TEXT NOT NULL DEFAULT '';`),
		},
		"migrations/000001_create_entries.up.sql": {
			Data: []byte(`CREATE TABLE entries (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`),
		},
		"migrations/000001_create_entries.down.sql": {
			Data: []byte(`DROP TABLE entries;`),
		},
		"migrations/README.md": {
			Data: []byte(`not a migration`),
		},
	}
}

// TestRun はRun関数を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("バージョン順にマイグレーションが適用されること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		ctx := context.Background()

		count, err := Run(ctx, db, testMigrations(), "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if count != 2 {
			t.Errorf("適用件数 = %d, want 2", count)
		}

		if _, err := db.ExecContext(ctx, `INSERT INTO entries (name, note) VALUES ('a', 'b')`); err != nil {
			t.Errorf("マイグレーション後のテーブルに挿入できない: %v", err)
		}
	})

	t.Run("2回目の実行では何も適用されないこと", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		ctx := context.Background()

		if _, err := Run(ctx, db, testMigrations(), "migrations", zap.NewNop()); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		count, err := Run(ctx, db, testMigrations(), "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if count != 0 {
			t.Errorf("適用件数 = %d, want 0", count)
		}

		var versions int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&versions); err != nil {
			t.Fatalf("バージョン数の取得に失敗: %v", err)
		}
		if versions != 2 {
			t.Errorf("記録されたバージョン数 = %d, want 2", versions)
		}
	})

	t.Run("SQLが不正な場合はエラーが返りバージョンが記録されないこと", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		ctx := context.Background()
		fsys := fstest.MapFS{
			"migrations/000001_broken.up.sql": {Data: []byte(`CREATE TABLE (`)},
		}

		if _, err := Run(ctx, db, fsys, "migrations", zap.NewNop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}

		var versions int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&versions); err != nil {
			t.Fatalf("バージョン数の取得に失敗: %v", err)
		}
		if versions != 0 {
			t.Errorf("記録されたバージョン数 = %d, want 0", versions)
		}
	})

	t.Run("ディレクトリが存在しない場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := Run(context.Background(), db, fstest.MapFS{}, "missing", zap.NewNop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}
