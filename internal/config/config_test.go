package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// envMap はテスト用の環境変数を返すgetenv互換関数を生成する。
func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

// TestBuild はBuild関数を検証する。
func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("環境変数が無い場合は既定値になること", func(t *testing.T) {
		t.Parallel()

		cfg, err := Build(envMap(nil))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.Services[ServiceStakeholders] != "http://localhost:5001" {
			t.Errorf("stakeholders = %q", cfg.Services[ServiceStakeholders])
		}
		if cfg.Services[ServiceTours] != "http://localhost:5002" {
			t.Errorf("tours = %q", cfg.Services[ServiceTours])
		}
		if cfg.Services[ServiceBlogs] != "http://localhost:5003" {
			t.Errorf("blogs = %q", cfg.Services[ServiceBlogs])
		}
		if cfg.JWT.Issuer != "travel-agency" || cfg.JWT.Audience != "travel-agency-users" {
			t.Errorf("JWT = %+v", cfg.JWT)
		}
		if !cfg.UsesDefaultJWTKey() {
			t.Error("既定の署名鍵を使っていると判定されるべき")
		}
		if cfg.UpstreamTimeout != 100*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 100s", cfg.UpstreamTimeout)
		}
		if cfg.RPCTimeout != 0 {
			t.Errorf("RPCTimeout = %v, want 0", cfg.RPCTimeout)
		}
	})

	t.Run("環境変数で上書きできること", func(t *testing.T) {
		t.Parallel()

		cfg, err := Build(envMap(map[string]string{
			"PORT":                     "9000",
			"STAKEHOLDERS_SERVICE_URL": "http://stakeholders:80",
			"TOUR_SERVICE_URL":         "http://tours:80",
			"FOLLOWER_GRPC_ADDR":       "followers:50051",
			"JWT_KEY":                  "another-key",
			"UPSTREAM_TIMEOUT":         "15s",
			"RPC_TIMEOUT":              "2s",
			"CORS_ORIGINS":             "http://localhost:3000, https://example.com,",
			"GATEWAY_JOURNAL_DSN":      "file:journal.db",
			"LOG_LEVEL":                "debug",
			"LOG_FORMAT":               "console",
		}))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		if cfg.Port != "9000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "9000")
		}
		if cfg.Services[ServiceStakeholders] != "http://stakeholders:80" {
			t.Errorf("stakeholders = %q", cfg.Services[ServiceStakeholders])
		}
		if cfg.Services[ServiceTours] != "http://tours:80" {
			t.Errorf("tours = %q", cfg.Services[ServiceTours])
		}
		if cfg.Services[ServiceBlogs] != "http://localhost:5003" {
			t.Errorf("上書きしていないblogsが変わった: %q", cfg.Services[ServiceBlogs])
		}
		if cfg.FollowerGRPCAddr != "followers:50051" {
			t.Errorf("FollowerGRPCAddr = %q", cfg.FollowerGRPCAddr)
		}
		if cfg.UsesDefaultJWTKey() {
			t.Error("上書きした署名鍵が既定と判定された")
		}
		if cfg.UpstreamTimeout != 15*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 15s", cfg.UpstreamTimeout)
		}
		if cfg.RPCTimeout != 2*time.Second {
			t.Errorf("RPCTimeout = %v, want 2s", cfg.RPCTimeout)
		}
		want := []string{"http://localhost:3000", "https://example.com"}
		if strings.Join(cfg.AllowedOrigins, "|") != strings.Join(want, "|") {
			t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
		}
		if cfg.JournalDSN != "file:journal.db" {
			t.Errorf("JournalDSN = %q", cfg.JournalDSN)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
			t.Errorf("Log = %+v", cfg.Log)
		}
	})

	t.Run("YAMLファイルを既定値に重ね環境変数がさらに優先されること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "gateway.yaml")
		content := `port: "7000"
jwt:
  issuer: explorer
  audience: explorer-front.com
services:
  blogs: http://blogs:8080
  purchase: http://purchase:8080
upstream_timeout: 20s
allowed_origins:
  - https://tours.example.org
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("設定ファイルの書き込みに失敗: %v", err)
		}

		cfg, err := Build(envMap(map[string]string{
			"GATEWAY_CONFIG": path,
			"PORT":           "7100",
		}))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		if cfg.Port != "7100" {
			t.Errorf("Port = %q, want %q", cfg.Port, "7100")
		}
		if cfg.JWT.Issuer != "explorer" || cfg.JWT.Audience != "explorer-front.com" {
			t.Errorf("JWT = %+v", cfg.JWT)
		}
		if cfg.JWT.Key != DefaultJWTKey {
			t.Errorf("YAMLで指定していない鍵が変わった: %q", cfg.JWT.Key)
		}
		if cfg.Services[ServiceBlogs] != "http://blogs:8080" {
			t.Errorf("blogs = %q", cfg.Services[ServiceBlogs])
		}
		if cfg.Services[ServiceStakeholders] != "http://localhost:5001" {
			t.Errorf("stakeholders = %q", cfg.Services[ServiceStakeholders])
		}
		if cfg.UpstreamTimeout != 20*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 20s", cfg.UpstreamTimeout)
		}
		if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://tours.example.org" {
			t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
		}
	})

	t.Run("同梱の設定例を読み込めること", func(t *testing.T) {
		t.Parallel()

		cfg, err := Build(envMap(map[string]string{
			"GATEWAY_CONFIG": filepath.Join("..", "..", "configs", "gateway.example.yaml"),
		}))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		if cfg.RPCTimeout != 10*time.Second {
			t.Errorf("RPCTimeout = %v, want %v", cfg.RPCTimeout, 10*time.Second)
		}
		if cfg.Services[ServiceFollowers] != "http://followers:5005" {
			t.Errorf("Services[followers] = %q", cfg.Services[ServiceFollowers])
		}
		if cfg.UsesDefaultJWTKey() {
			t.Error("UsesDefaultJWTKey() = true, want false")
		}
	})

	t.Run("設定ファイルが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := Build(envMap(map[string]string{
			"GATEWAY_CONFIG": filepath.Join(t.TempDir(), "missing.yaml"),
		}))
		if err == nil {
			t.Fatal("Build()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("タイムアウトの形式が不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := Build(envMap(map[string]string{"UPSTREAM_TIMEOUT": "soon"}))
		if err == nil {
			t.Fatal("Build()がエラーを返すべきだが、nilが返った")
		}
		if !strings.Contains(err.Error(), "UPSTREAM_TIMEOUT") {
			t.Errorf("エラーに環境変数名が含まれていない: %v", err)
		}
	})

	t.Run("各呼び出しが独立したサービス表を持つこと", func(t *testing.T) {
		t.Parallel()

		first, err := Build(envMap(map[string]string{"BLOG_SERVICE_URL": "http://blogs:1"}))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		second, err := Build(envMap(nil))
		if err != nil {
			t.Fatalf("Build()でエラーが発生: %v", err)
		}
		if first.Services[ServiceBlogs] == second.Services[ServiceBlogs] {
			t.Error("サービス表が呼び出し間で共有されている")
		}
	})
}

// TestValidate はValidate関数を検証する。
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "既定値は有効", mutate: func(_ *Config) {}, wantErr: false},
		{name: "署名鍵が空", mutate: func(c *Config) { c.JWT.Key = "" }, wantErr: true},
		{name: "ポートが空", mutate: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "相対URLのサービス", mutate: func(c *Config) { c.Services[ServiceTours] = "tours:5002" }, wantErr: true},
		{name: "ホストの無いURL", mutate: func(c *Config) { c.Services[ServiceTours] = "http://" }, wantErr: true},
		{name: "上流タイムアウトが0", mutate: func(c *Config) { c.UpstreamTimeout = 0 }, wantErr: true},
		{name: "RPCタイムアウトが負", mutate: func(c *Config) { c.RPCTimeout = -time.Second }, wantErr: true},
		{name: "ログレベルが不正", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "ログ形式が不正", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
