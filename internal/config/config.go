// Package config loads settings from defaults, an optional YAML file and
// TRENDING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github-trending-digest/internal/domain"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

const envPrefix = "TRENDING"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Trending  TrendingConfig  `mapstructure:"trending"`
	AI        AIConfig        `mapstructure:"ai"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Feishu    FeishuConfig    `mapstructure:"feishu"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Server    ServerConfig    `mapstructure:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Collector CollectorConfig `mapstructure:"collector"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig DSN 为空时由 host/port/user/password/name 拼出
type DatabaseConfig struct {
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

type TrendingConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Periods  []string      `mapstructure:"periods"`
	Language string        `mapstructure:"language"`
	Limit    int           `mapstructure:"limit"`
	Timezone string        `mapstructure:"timezone"`
}

type AIConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Concurrency   int           `mapstructure:"concurrency"`
	ReplyLanguage string        `mapstructure:"reply_language"`
	Temperature   float64       `mapstructure:"temperature"`
}

type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	Inspect bool   `mapstructure:"inspect"`
}

type FeishuConfig struct {
	Webhook string `mapstructure:"webhook"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

type CollectorConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// 供应商
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// SetDefaults 注册所有配置项的默认值，环境变量只能覆盖已注册的键
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.backend", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "github_trending")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open", 10)
	v.SetDefault("database.max_idle", 5)

	v.SetDefault("trending.base_url", "https://github.com/trending")
	v.SetDefault("trending.timeout", 30*time.Second)
	v.SetDefault("trending.periods", []string{"daily", "weekly"})
	v.SetDefault("trending.language", "")
	v.SetDefault("trending.limit", 20)
	v.SetDefault("trending.timezone", "Asia/Shanghai")

	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.concurrency", 1)
	v.SetDefault("ai.reply_language", "Chinese")
	v.SetDefault("ai.temperature", 0.7)

	v.SetDefault("github.token", "")
	v.SetDefault("github.inspect", false)
	v.SetDefault("feishu.webhook", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "github-trending.snapshots")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("schedule.cron", "0 9 * * *")
	v.SetDefault("collector.run_timeout", time.Duration(0)) // 不限制

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load 合并默认值、配置文件 (configFile 为空时查找 ./trending.yaml) 和环境变量
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("trending")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg.applyWellKnownEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyWellKnownEnv 兼容常见的环境变量名
func (c *Config) applyWellKnownEnv() {
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case ProviderGemini:
			c.AI.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		case ProviderOpenAI:
			c.AI.APIKey = firstEnv("OPENAI_API_KEY", "DEEPSEEK_API_KEY")
		}
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Feishu.Webhook == "" {
		c.Feishu.Webhook = os.Getenv("FEISHU_WEBHOOK")
	}
	if c.Database.DSN == "" {
		c.Database.DSN = os.Getenv("DATABASE_URL")
	}
	c.Kafka.Brokers = splitList(c.Kafka.Brokers)
	c.Trending.Periods = splitList(c.Trending.Periods)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// splitList 把 "a,b" 形式的单个元素展开
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid database backend %q: must be postgres, mysql or sqlite", c.Database.Backend)
	}
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid ai provider %q: must be gemini or openai", c.AI.Provider)
	}
	if _, err := c.Periods(); err != nil {
		return err
	}
	if c.Trending.Limit <= 0 {
		return fmt.Errorf("trending.limit must be positive, got %d", c.Trending.Limit)
	}
	if c.AI.Concurrency <= 0 {
		return fmt.Errorf("ai.concurrency must be positive, got %d", c.AI.Concurrency)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// Periods 解析后的采集周期
func (c *Config) Periods() ([]domain.Period, error) {
	if len(c.Trending.Periods) == 0 {
		return nil, errors.New("trending.periods must not be empty")
	}
	out := make([]domain.Period, 0, len(c.Trending.Periods))
	for _, p := range c.Trending.Periods {
		period, err := domain.ParsePeriod(p)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, nil
}

// Location 决定"今天"是哪一天
func (c *Config) Location() (*time.Location, error) {
	if c.Trending.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Trending.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid trending.timezone %q: %w", c.Trending.Timezone, err)
	}
	return loc, nil
}

// DatabaseDSN 返回连接串，未配置 dsn 时按后端拼接
func (c *Config) DatabaseDSN() string {
	d := c.Database
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Backend {
	case "sqlite":
		return "trending.db"
	case "mysql":
		port := d.Port
		if port == 0 {
			port = 3306
		}
		mc := mysqlDriver.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(port))
		mc.DBName = d.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	default:
		port := d.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", d.Host, port, d.User, d.Name, d.SSLMode)
		if d.Password != "" {
			dsn += " password=" + d.Password
		}
		return dsn
	}
}
