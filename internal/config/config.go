package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spigell/resume-chat/internal/chunkstore"
	"github.com/spigell/resume-chat/internal/secrets"
)

const (
	App       = "resume-chat"
	EnvPrefix = "RESUME_CHAT"
)

type Config struct {
	Debug     bool            `mapstructure:"debug"`
	JSON      bool            `mapstructure:"json"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Store     StoreConfig     `mapstructure:"store"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Server    ServerConfig    `mapstructure:"server"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	RouterModel    string `mapstructure:"router-model" validate:"required"`
	AnswerModel    string `mapstructure:"answer-model" validate:"required"`
	ChatModel      string `mapstructure:"chat-model" validate:"required"`
	EmbeddingModel string `mapstructure:"embedding-model" validate:"required"`
	Dimensions     int    `mapstructure:"dimensions" validate:"gt=0"`
	MaxRetries     int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength   int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type StoreConfig struct {
	Driver  string `mapstructure:"driver" validate:"oneof=postgres sqlite sqlite3"`
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type RetrievalConfig struct {
	TopK     int           `mapstructure:"top-k" validate:"gt=0"`
	CacheTTL time.Duration `mapstructure:"cache-ttl" validate:"gte=0"`
}

type AgentConfig struct {
	HistoryWindow int `mapstructure:"history-window" validate:"gt=0"`
}

type IngestConfig struct {
	BatchSize   int `mapstructure:"batch-size" validate:"gt=0"`
	MaxAttempts int `mapstructure:"max-attempts" validate:"gt=0"`
	ChunkWords  int `mapstructure:"chunk-words" validate:"gt=0"`
}

type ServerConfig struct {
	Listen     string        `mapstructure:"listen" validate:"required"`
	SessionTTL time.Duration `mapstructure:"session-ttl" validate:"gt=0"`
}

var defaults = map[string]any{
	"debug":                  false,
	"json":                   false,
	"gemini.api-key":         "",
	"gemini.api-key-file":    "",
	"gemini.router-model":    "gemini-2.5-flash",
	"gemini.answer-model":    "gemini-2.5-flash",
	"gemini.chat-model":      "gemini-2.5-flash",
	"gemini.embedding-model": "text-embedding-004",
	"gemini.dimensions":      768,
	"gemini.max-retries":     3,
	"gemini.max-log-length":  200,
	"store.driver":           chunkstore.DriverSQLite,
	"store.dsn":              App + ".db",
	"store.dsn-file":         "",
	"retrieval.top-k":        5,
	"retrieval.cache-ttl":    10 * time.Minute,
	"agent.history-window":   10,
	"ingest.batch-size":      32,
	"ingest.max-attempts":    5,
	"ingest.chunk-words":     300,
	"server.listen":          ":8080",
	"server.session-ttl":     30 * time.Minute,
}

// New returns a viper instance with defaults and RESUME_CHAT_ environment
// overrides. Nested keys map to variables like RESUME_CHAT_RETRIEVAL_TOP_K.
func New() *viper.Viper {
	v := viper.New()
	Configure(v)
	return v
}

func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// LoadDotEnv exports the variables of the given files, ".env" by default.
// Missing files are ignored and already set variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads file, or resume-chat.yaml from the working directory when file
// is empty, and returns the validated configuration. Only an explicitly
// named file is required to exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(App)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveAPIKey reads the Gemini API key from api-key-file, api-key or the
// GEMINI_API_KEY variable, in that order.
func (c GeminiConfig) ResolveAPIKey() (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: c.APIKey,
		File:  c.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
}

// ResolveDSN returns the connection string of the selected store. Postgres
// also accepts DATABASE_URL.
func (c StoreConfig) ResolveDSN() (string, error) {
	src := secrets.Source{Name: c.Driver + " dsn", Value: c.DSN, File: c.DSNFile}
	if c.Driver == chunkstore.DriverPostgres {
		src.Name = "postgres dsn"
		src.Env = "DATABASE_URL"
	}
	return secrets.Load(src)
}
