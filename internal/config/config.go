package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RegionCN  = "cn"
	RegionCOM = "com"

	ModePoll       = "poll"
	ModeCompletion = "completion"

	HandleInQuery = "query"
	HandleInBody  = "body"
)

var regionHosts = map[string]string{
	RegionCN:  "https://api.coze.cn",
	RegionCOM: "https://api.coze.com",
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Coze   CozeConfig   `mapstructure:"coze"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CozeConfig struct {
	Region         string        `mapstructure:"region"`
	APIHost        string        `mapstructure:"api_host"`
	BotID          string        `mapstructure:"bot_id"`
	Token          string        `mapstructure:"token"`
	DefaultUserID  string        `mapstructure:"default_user_id"`
	Mode           string        `mapstructure:"mode"`
	Timeout        time.Duration `mapstructure:"timeout"`
	DebugRequest   bool          `mapstructure:"debug_request"`
	ChatPath       string        `mapstructure:"chat_path"`
	CompletionPath string        `mapstructure:"completion_path"`
	MessagesField  string        `mapstructure:"messages_field"`
	HandlePaths    []string      `mapstructure:"handle_paths"`
	Poll           PollConfig    `mapstructure:"poll"`
}

// PollConfig controls the completion poller. Interval is constant between
// attempts; Deadline is an extra wall-clock ceiling on top of MaxAttempts.
type PollConfig struct {
	StatusPath         string        `mapstructure:"status_path"`
	MessagesPath       string        `mapstructure:"messages_path"`
	HandleIn           string        `mapstructure:"handle_in"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Interval           time.Duration `mapstructure:"interval"`
	RetryOnRemoteError bool          `mapstructure:"retry_on_remote_error"`
	Deadline           time.Duration `mapstructure:"deadline"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	RawLimit int    `mapstructure:"raw_limit"`
}

// BaseURL returns the explicit api_host when set, otherwise the host of the configured region.
func (c CozeConfig) BaseURL() string {
	if c.APIHost != "" {
		return strings.TrimRight(c.APIHost, "/")
	}
	if host, ok := regionHosts[strings.ToLower(c.Region)]; ok {
		return host
	}
	return regionHosts[RegionCN]
}

func (c *Config) Validate() error {
	switch c.Coze.Mode {
	case ModePoll, ModeCompletion:
	default:
		return fmt.Errorf("unsupported coze.mode %q", c.Coze.Mode)
	}
	switch c.Coze.Poll.HandleIn {
	case HandleInQuery, HandleInBody:
	default:
		return fmt.Errorf("unsupported coze.poll.handle_in %q", c.Coze.Poll.HandleIn)
	}
	if c.Coze.Poll.MaxAttempts < 1 {
		return errors.New("coze.poll.max_attempts must be at least 1")
	}
	if c.Coze.Poll.Interval < 0 || c.Coze.Poll.Deadline < 0 {
		return errors.New("coze.poll interval and deadline must not be negative")
	}
	if len(c.Coze.HandlePaths) == 0 {
		return errors.New("coze.handle_paths must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("coze.region", RegionCN)
	v.SetDefault("coze.api_host", "")
	v.SetDefault("coze.bot_id", "")
	v.SetDefault("coze.token", "")
	v.SetDefault("coze.default_user_id", "wx_user_001")
	v.SetDefault("coze.mode", ModePoll)
	v.SetDefault("coze.timeout", 15*time.Second)
	v.SetDefault("coze.debug_request", false)
	v.SetDefault("coze.chat_path", "/v3/chat")
	v.SetDefault("coze.completion_path", "/v3/chat/completions")
	v.SetDefault("coze.messages_field", "additional_messages")
	v.SetDefault("coze.handle_paths", []string{
		"data.conversation_id",
		"data.id",
		"data.chat_id",
		"conversation_id",
		"id",
		"chat_id",
	})

	v.SetDefault("coze.poll.status_path", "/v3/chat/retrieve")
	v.SetDefault("coze.poll.messages_path", "/v3/chat/message/list")
	v.SetDefault("coze.poll.handle_in", HandleInQuery)
	v.SetDefault("coze.poll.max_attempts", 20)
	v.SetDefault("coze.poll.interval", 800*time.Millisecond)
	v.SetDefault("coze.poll.retry_on_remote_error", false)
	v.SetDefault("coze.poll.deadline", 30*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.raw_limit", 400)
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file, an optional
// .env file and the process environment, in that order of precedence.
func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容原部署平台注入的环境变量
	for key, env := range map[string]string{
		"server.port":   "PORT",
		"coze.api_host": "COZE_API_HOST",
		"coze.bot_id":   "COZE_BOT_ID",
		"coze.token":    "COZE_TOKEN",
	} {
		if err := v.BindEnv(key, "CHAT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MaskToken keeps the first 10 characters of a secret for boot logs.
func MaskToken(token string) string {
	if token == "" {
		return "(EMPTY)"
	}
	if len(token) > 10 {
		return token[:10] + "..."
	}
	return token
}
