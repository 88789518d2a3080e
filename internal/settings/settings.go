// Package settings resolves the environment profile and typed runtime settings from a utils.Config
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
)

// Environment names a settings profile
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// MinExchanges is the smallest exchange ceiling that still leaves room for the four required questions
const MinExchanges = 3

// AvailableModels lists the models the consultation prompts are tuned for
var AvailableModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4", "gpt-3.5-turbo"}

// Store drivers
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
)

// base holds the values every profile starts from
var base = map[string]string{
	"MODEL":                     agent.DefaultModel,
	"MAX_EXCHANGES":             "5",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "text",
	"HISTORY_TEMPERATURE":       "0.7",
	"DECISION_TEMPERATURE":      "0.3",
	"COMMUNICATION_TEMPERATURE": "0.5",
	"MAX_TOKENS":                "500",
	"GENERATOR_BACKEND":         agent.BackendAgents,
	"STORE_DRIVER":              StoreFile,
	"CONSULTATION_LOG_FILE":     "consultation_log.json",
	"API_PORT":                  "8080",
	"SESSION_IDLE_TIMEOUT":      "30m",
	"SESSION_SWEEP_SCHEDULE":    "@every 1m",
	"REQUIRE_CONFIRMATION":      "true",
}

// profiles override base per environment
var profiles = map[Environment]map[string]string{
	Development: {"LOG_LEVEL": "debug", "REQUIRE_CONFIRMATION": "false"},
	Production:  {"LOG_LEVEL": "warning", "MODEL": "gpt-4o"},
	Test:        {"LOG_LEVEL": "debug", "MAX_EXCHANGES": "3", "REQUIRE_CONFIRMATION": "false"},
}

// ParseEnvironment maps a name to a profile. Unknown or empty names fall back to development.
func ParseEnvironment(name string) (Environment, bool) {
	env := Environment(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[env]; ok {
		return env, true
	}
	return Development, false
}

// Temperatures per stage
type Temperatures struct {
	History       float64
	Decision      float64
	Communication float64
}

// PromptPaths are optional files overriding the embedded stage prompts
type PromptPaths struct {
	History       string
	Decision      string
	Communication string
}

// Store selects and configures the consultation log
type Store struct {
	Driver  string
	LogFile string

	// DSN is used as-is for postgres, and for mysql when set
	DSN string

	MySQL mysql.Config
}

// API configures the HTTP server
type API struct {
	Port               string
	Key                string
	AllowedOrigins     []string
	SessionIdleTimeout time.Duration
	SweepSchedule      string
}

// Settings is the resolved runtime configuration
type Settings struct {
	Environment         Environment
	APIKey              string
	Model               string
	Backend             string
	MaxExchanges        int
	MaxTokens           int
	LogLevel            string
	LogFormat           string
	RequireConfirmation bool
	Temperatures        Temperatures
	Prompts             PromptPaths
	PolicyFile          string
	Store               Store
	API                 API

	// Config is the merged key/value view the settings were read from
	Config *utils.Config
}

// Load resolves settings from cfg. The environment comes from env when non-empty, else from
// the ENVIRONMENT key. Explicit keys in cfg win over profile defaults.
func Load(cfg *utils.Config, env string) *Settings {
	if cfg == nil {
		cfg = utils.NewConfig(nil)
	}
	if env == "" {
		env = cfg.Get("ENVIRONMENT")
	}
	environment, _ := ParseEnvironment(env)

	merged := cfg.Clone()
	for key, value := range profiles[environment] {
		merged.SetDefault(key, value)
	}
	for key, value := range base {
		merged.SetDefault(key, value)
	}
	merged.Set("ENVIRONMENT", string(environment))

	s := &Settings{
		Environment:         environment,
		APIKey:              merged.Get("OPENAI_API_KEY"),
		Model:               merged.Get("MODEL"),
		Backend:             merged.Get("GENERATOR_BACKEND"),
		MaxExchanges:        merged.GetIntWithDefault("MAX_EXCHANGES", 5),
		MaxTokens:           merged.GetIntWithDefault("MAX_TOKENS", agent.DefaultMaxTokens),
		LogLevel:            merged.Get("LOG_LEVEL"),
		LogFormat:           merged.Get("LOG_FORMAT"),
		RequireConfirmation: merged.GetBool("REQUIRE_CONFIRMATION"),
		Temperatures: Temperatures{
			History:       merged.GetFloatWithDefault("HISTORY_TEMPERATURE", 0.7),
			Decision:      merged.GetFloatWithDefault("DECISION_TEMPERATURE", 0.3),
			Communication: merged.GetFloatWithDefault("COMMUNICATION_TEMPERATURE", 0.5),
		},
		Prompts: PromptPaths{
			History:       merged.Get("HISTORY_SYSPROMPT_PATH"),
			Decision:      merged.Get("DECISION_SYSPROMPT_PATH"),
			Communication: merged.Get("COMMUNICATION_SYSPROMPT_PATH"),
		},
		PolicyFile: merged.Get("POLICY_FILE"),
		Store: Store{
			Driver:  strings.ToLower(merged.Get("STORE_DRIVER")),
			LogFile: merged.Get("CONSULTATION_LOG_FILE"),
			DSN:     merged.Get("DATABASE_URL"),
			MySQL: mysql.Config{
				User:                 merged.Get("MYSQL_USERNAME"),
				Passwd:               merged.Get("MYSQL_ROOT_PASSWORD"),
				Net:                  "tcp",
				Addr:                 fmt.Sprintf("%s:%s", merged.GetWithDefault("MYSQL_HOST", "127.0.0.1"), merged.GetWithDefault("MYSQL_PORT", "3306")),
				DBName:               merged.Get("MYSQL_DATABASE"),
				ParseTime:            true,
				AllowNativePasswords: true,
			},
		},
		API: API{
			Port:               merged.Get("API_PORT"),
			Key:                merged.Get("API_KEY"),
			AllowedOrigins:     splitList(merged.GetWithDefault("CORS_ALLOWED_ORIGINS", "*")),
			SessionIdleTimeout: merged.GetDurationWithDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepSchedule:      merged.Get("SESSION_SWEEP_SCHEDULE"),
		},
		Config: merged,
	}

	return s
}

// Validate checks everything needed to talk to the model provider
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.APIKey) == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if err := s.ValidateOffline(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateOffline checks everything except provider credentials, for scripted runs
func (s *Settings) ValidateOffline() error {
	var errs []error
	if s.MaxExchanges < MinExchanges {
		errs = append(errs, fmt.Errorf("MAX_EXCHANGES must be at least %d, got %d", MinExchanges, s.MaxExchanges))
	}
	if !slices.Contains(AvailableModels, s.Model) {
		errs = append(errs, fmt.Errorf("model %q is not supported (available: %s)", s.Model, strings.Join(AvailableModels, ", ")))
	}
	switch s.Store.Driver {
	case StoreFile, StoreMemory, StoreMySQL, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", s.Store.Driver))
	}
	return errors.Join(errs...)
}

// GeneratorConfig returns the generator settings
func (s *Settings) GeneratorConfig() agent.GeneratorConfig {
	return agent.GeneratorConfig{
		APIKey:    s.APIKey,
		Model:     s.Model,
		MaxTokens: s.MaxTokens,
		BaseURL:   s.Config.Get("OPENAI_BASE_URL"),
	}
}

// MySQLDSN returns DATABASE_URL when set, else a DSN built from the MYSQL_* keys
func (s Store) MySQLDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	return s.MySQL.FormatDSN()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
