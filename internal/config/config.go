package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// 下流サービスの論理名。
const (
	ServiceStakeholders = "stakeholders"
	ServiceTours        = "tours"
	ServiceBlogs        = "blogs"
	ServicePurchase     = "purchase"
	ServiceFollowers    = "followers"
)

// DefaultJWTKey は発行元サービスと共有する既定の署名鍵。本番では JWT_KEY で必ず上書きする。
const DefaultJWTKey = "explorer_secret_key_very_long_and_secure_key_for_production"

// serviceEnvVars はサービスごとのURLを上書きする環境変数名。
var serviceEnvVars = map[string]string{
	ServiceStakeholders: "STAKEHOLDERS_SERVICE_URL",
	ServiceTours:        "TOUR_SERVICE_URL",
	ServiceBlogs:        "BLOG_SERVICE_URL",
	ServicePurchase:     "PURCHASE_SERVICE_URL",
	ServiceFollowers:    "FOLLOWER_SERVICE_URL",
}

// Config はゲートウェイ全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// JWT はトークン検証の設定。
	JWT JWT `yaml:"jwt"`
	// Services はサービス名からベースURLへの対応。
	Services map[string]string `yaml:"services"`
	// FollowerGRPCAddr はフォロワーサービスのgRPCアドレス。
	FollowerGRPCAddr string `yaml:"follower_grpc_addr"`
	// UpstreamTimeout は下流HTTP呼び出しのタイムアウト。
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	// RPCTimeout はgRPC呼び出しのタイムアウト。0の場合は設定しない。
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
	// AllowedOrigins はCORSで許可するオリジン。"*" で全て許可する。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// JournalDSN はアクセスジャーナルのSQLite DSN。空の場合は記録しない。
	JournalDSN string `yaml:"journal_dsn"`
	// Log はログ出力の設定。
	Log Log `yaml:"log"`
}

// JWT はトークン検証の設定。
type JWT struct {
	Key      string `yaml:"key"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Log はログ出力の設定。
type Log struct {
	// Level は debug, info, warn, error のいずれか。
	Level string `yaml:"level"`
	// Format は json または console。
	Format string `yaml:"format"`
}

// Default は既定値で埋めたConfigを返す。
func Default() *Config {
	return &Config{
		Port: "8080",
		JWT: JWT{
			Key:      DefaultJWTKey,
			Issuer:   "travel-agency",
			Audience: "travel-agency-users",
		},
		Services: map[string]string{
			ServiceStakeholders: "http://localhost:5001",
			ServiceTours:        "http://localhost:5002",
			ServiceBlogs:        "http://localhost:5003",
			ServicePurchase:     "http://localhost:5004",
			ServiceFollowers:    "http://localhost:5005",
		},
		FollowerGRPCAddr: "localhost:50051",
		UpstreamTimeout:  100 * time.Second,
		AllowedOrigins:   []string{"*"},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load はカレントディレクトリの .env を読み込んだうえでプロセスの環境変数から設定を組み立てる。
// .env が無い場合は無視する。既に設定されている環境変数は .env で上書きしない。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}
	return Build(os.Getenv)
}

// Build は既定値、GATEWAY_CONFIG が指すYAMLファイル、環境変数の順に設定を重ねて検証する。
// getenv には os.Getenv 互換の関数を渡す。
func Build(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("GATEWAY_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile はYAMLファイルの内容を既定値の上に重ねる。
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("設定ファイル %s のパースに失敗: %w", path, err)
	}

	if file.Port != "" {
		c.Port = file.Port
	}
	if file.JWT.Key != "" {
		c.JWT.Key = file.JWT.Key
	}
	if file.JWT.Issuer != "" {
		c.JWT.Issuer = file.JWT.Issuer
	}
	if file.JWT.Audience != "" {
		c.JWT.Audience = file.JWT.Audience
	}
	for name, baseURL := range file.Services {
		c.Services[name] = baseURL
	}
	if file.FollowerGRPCAddr != "" {
		c.FollowerGRPCAddr = file.FollowerGRPCAddr
	}
	if file.UpstreamTimeout != 0 {
		c.UpstreamTimeout = file.UpstreamTimeout
	}
	if file.RPCTimeout != 0 {
		c.RPCTimeout = file.RPCTimeout
	}
	if file.AllowedOrigins != nil {
		c.AllowedOrigins = file.AllowedOrigins
	}
	if file.JournalDSN != "" {
		c.JournalDSN = file.JournalDSN
	}
	if file.Log.Level != "" {
		c.Log.Level = file.Log.Level
	}
	if file.Log.Format != "" {
		c.Log.Format = file.Log.Format
	}
	return nil
}

// applyEnv は環境変数で設定を上書きする。
func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, name string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	setString(&c.Port, "PORT")
	setString(&c.JWT.Key, "JWT_KEY")
	setString(&c.JWT.Issuer, "JWT_ISSUER")
	setString(&c.JWT.Audience, "JWT_AUDIENCE")
	setString(&c.FollowerGRPCAddr, "FOLLOWER_GRPC_ADDR")
	setString(&c.JournalDSN, "GATEWAY_JOURNAL_DSN")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	for name, env := range serviceEnvVars {
		if v := getenv(env); v != "" {
			c.Services[name] = v
		}
	}

	for name, dst := range map[string]*time.Duration{
		"UPSTREAM_TIMEOUT": &c.UpstreamTimeout,
		"RPC_TIMEOUT":      &c.RPCTimeout,
	} {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("環境変数 %s の値が不正: %w", name, err)
		}
		*dst = d
	}

	if v := getenv("CORS_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("ポートが空です"))
	}
	if c.JWT.Key == "" {
		errs = append(errs, errors.New("JWT署名鍵が空です"))
	}
	for name, baseURL := range c.Services {
		u, err := url.Parse(baseURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, fmt.Errorf("サービス %s のURLが絶対URLではありません: %q", name, baseURL))
		}
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("上流タイムアウトは正の値が必要です: %s", c.UpstreamTimeout))
	}
	if c.RPCTimeout < 0 {
		errs = append(errs, fmt.Errorf("RPCタイムアウトは0以上が必要です: %s", c.RPCTimeout))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("ログレベルが不正です: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("ログ形式が不正です: %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// UsesDefaultJWTKey は既定の署名鍵のまま起動しているかどうかを返す。
func (c *Config) UsesDefaultJWTKey() bool {
	return c.JWT.Key == DefaultJWTKey
}

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
