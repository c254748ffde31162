// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/marketfeed/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Poll / Fetch
	PollInterval   time.Duration
	FetchTimeout   time.Duration
	FetchMaxSize   int64
	PerSourceLimit int

	// Query limits
	ResultLimit    int // ページ描画とフィルタ付きクエリの上限
	APIResultLimit int // /api/news の上限

	// Retention
	RetentionDays int // 0で無効

	// Rate Limit
	RateLimitGeneral int // req/min/クライアントIP

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Sources / Keywords
	Sources         []model.Source
	IncludeKeywords []string
	ExcludeKeywords []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 60*time.Second)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.PerSourceLimit = getEnvInt("PER_SOURCE_LIMIT", 50)
	cfg.ResultLimit = getEnvInt("RESULT_LIMIT", 150)
	cfg.APIResultLimit = getEnvInt("API_RESULT_LIMIT", 250)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 180)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	sources, err := parseSources(os.Getenv("FEED_SOURCES"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_SOURCES: %w", err)
	}
	if sources == nil {
		sources = DefaultSources()
	}
	cfg.Sources = sources

	cfg.IncludeKeywords = getEnvList("INCLUDE_KEYWORDS", DefaultIncludeKeywords())
	cfg.ExcludeKeywords = getEnvList("EXCLUDE_KEYWORDS", DefaultExcludeKeywords())

	return cfg, nil
}

// parseSources は"Name=URL;Name=URL"形式のソース指定をパースする。
// 空文字列の場合はnilを返す（デフォルトリストを使用する合図）。
func parseSources(raw string) ([]model.Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var sources []model.Source
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("malformed source pair: %q", pair)
		}
		sources = append(sources, model.Source{Name: name, URL: url})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no valid source pairs in %q", raw)
	}
	return sources, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var list []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return defaultVal
	}
	return list
}
