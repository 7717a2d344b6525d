package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	StaticPath  string        `mapstructure:"static_path"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	MaxInflated int64         `mapstructure:"max_inflated"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	SendBuffer  int           `mapstructure:"send_buffer"`
	Secret      string        `mapstructure:"secret"`
	LogLevel    string        `mapstructure:"log_level"`

	Rooms       RoomsConfig       `mapstructure:"rooms"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Assets      AssetsConfig      `mapstructure:"assets"`
	Convert     ConvertConfig     `mapstructure:"convert"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Answer      AnswerConfig      `mapstructure:"answer"`
}

type RoomsConfig struct {
	EvictEmpty bool `mapstructure:"evict_empty"`
}

type UploadConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxChunks     int           `mapstructure:"max_chunks"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	StagingDir    string        `mapstructure:"staging_dir"`
}

type AssetsConfig struct {
	Dir        string `mapstructure:"dir"`
	PublicBase string `mapstructure:"public_base"`
}

// ConvertConfig points at an external document converter. An empty URL
// leaves only image assets convertible.
type ConvertConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PersistenceConfig struct {
	Path string `mapstructure:"path"`
}

// AnswerConfig configures the completion service behind get-definition.
// An empty URL disables it and clients get the fallback text.
type AnswerConfig struct {
	URL          string        `mapstructure:"url"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("max_inflated", 16<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("rooms.evict_empty", false)

	v.SetDefault("upload.ttl", "10m")
	v.SetDefault("upload.sweep_interval", "1m")
	v.SetDefault("upload.max_chunks", 4096)
	v.SetDefault("upload.max_bytes", 64<<20)
	v.SetDefault("upload.staging_dir", "./data/staging")

	v.SetDefault("assets.dir", "./data/assets")
	v.SetDefault("assets.public_base", "/assets")

	v.SetDefault("convert.url", "")
	v.SetDefault("convert.timeout", "60s")

	v.SetDefault("persistence.path", "./data/slideboard.db")

	v.SetDefault("answer.url", "")
	v.SetDefault("answer.model", "gpt-4o-mini")
	v.SetDefault("answer.api_key", "")
	v.SetDefault("answer.timeout", "15s")
	v.SetDefault("answer.rate_limit", 5)
	v.SetDefault("answer.rate_interval", "1m")
}

// Flags registers the command line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default config/config.<CONFIG_ENV>.yaml)")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "zerolog level (debug, info, warn, error)")
}

// Load reads defaults, the config file, SLIDEBOARD_* environment variables
// and flags, in increasing priority. onReload, when set, receives the fresh
// config every time the file changes on disk.
func Load(fs *pflag.FlagSet, onReload func(*Config)) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName, _ := fs.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("SLIDEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if f := fs.Lookup("port"); f != nil && f.Changed {
		_ = v.BindPFlag("port", f)
	}
	if f := fs.Lookup("log-level"); f != nil && f.Changed {
		_ = v.BindPFlag("log_level", f)
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		fileLoaded = false
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if fileLoaded && onReload != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			fresh, err := decode(v)
			if err != nil {
				log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload config")
				return
			}
			log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
			onReload(fresh)
		})
		v.WatchConfig()
	}

	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("logLevel", cfg.LogLevel).Msg("config ready")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
