package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/targets"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongoDB  = "mongodb"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Tracking  TrackingConfig
	Scheduler SchedulerConfig
	Store     StoreConfig
	Sheets    SheetsConfig
	WhatsApp  WhatsAppConfig
	AI        AIConfig
	Targets   targets.Config
	Plans     map[models.PlanID]models.Plan
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string
}

// TrackingConfig holds the food-day and quota policy.
type TrackingConfig struct {
	Timezone      string
	Location      *time.Location
	BoundaryHour  int
	RetentionDays int
	DefaultPlan   models.PlanID
}

// SchedulerConfig holds cron expressions for background jobs.
type SchedulerConfig struct {
	PurgeCron  string
	ExportCron string
	DigestCron string
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend     string
	Path        string
	SQLitePath  string
	PostgresDSN string
	Redis       RedisConfig
	MongoDB     MongoDBConfig
}

// RedisConfig holds settings for Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI        string
	DBName     string
	Collection string
}

// SheetsConfig contains configuration required to export summaries to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	Range           string
}

// Enabled reports whether the export is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// WhatsAppConfig holds WhatsApp Cloud API credentials used for chat and digests.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether outbound WhatsApp messages can be sent.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != ""
}

// AIConfig holds settings for LLM providers.
type AIConfig struct {
	AnthropicKey string
	Model        string
	BaseURL      string
}

// Enabled reports whether AI analysis can be used.
func (a AIConfig) Enabled() bool {
	return a.AnthropicKey != ""
}

// Tuning is the optional YAML file overriding calculation constants and the plan catalog.
type Tuning struct {
	Strategy            targets.Strategy                 `yaml:"strategy"`
	ActivityMultipliers map[models.ActivityLevel]float64 `yaml:"activity_multipliers"`
	GoalFactors         map[models.Goal]float64          `yaml:"goal_factors"`
	LegacyActivity      map[models.ActivityLevel]float64 `yaml:"legacy_activity_factors"`
	LegacyGoalFactors   map[models.Goal]float64          `yaml:"legacy_goal_factors"`
	ProteinShare        float64                          `yaml:"protein_share"`
	FatShare            float64                          `yaml:"fat_share"`
	Tolerance           float64                          `yaml:"macro_tolerance"`
	Plans               []models.Plan                    `yaml:"plans"`
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	boundary, err := getenvInt("DAY_BOUNDARY_HOUR", 4)
	if err != nil {
		return nil, err
	}
	retention, err := getenvInt("RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Tracking: TrackingConfig{
			Timezone:      getenvWithDefault("TIMEZONE", "UTC"),
			BoundaryHour:  boundary,
			RetentionDays: retention,
			DefaultPlan:   models.PlanID(getenvWithDefault("DEFAULT_PLAN", string(models.PlanFree))),
		},
		Scheduler: SchedulerConfig{
			PurgeCron:  getenvWithDefault("PURGE_CRON", "30 3 * * *"),
			ExportCron: getenvWithDefault("EXPORT_CRON", "15 4 * * *"),
			DigestCron: getenvWithDefault("DIGEST_CRON", "0 20 * * 0"),
		},
		Store: StoreConfig{
			Backend:     getenvWithDefault("STORE_BACKEND", BackendFile),
			Path:        getenvWithDefault("STORE_PATH", "./data"),
			SQLitePath:  getenvWithDefault("SQLITE_PATH", "./data/nutritrack.db"),
			PostgresDSN: os.Getenv("POSTGRES_DSN"),
			Redis: RedisConfig{
				Addr:     os.Getenv("REDIS_ADDR"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       redisDB,
				Prefix:   getenvWithDefault("REDIS_PREFIX", "nutritrack:"),
			},
			MongoDB: MongoDBConfig{
				URI:        os.Getenv("MONGODB_URI"),
				DBName:     getenvWithDefault("MONGODB_DB_NAME", "nutritrack"),
				Collection: getenvWithDefault("MONGODB_COLLECTION", "kv_entries"),
			},
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			Range:           getenvWithDefault("GOOGLE_SHEET_RANGE", "Summaries!A:H"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		AI: AIConfig{
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:        getenvWithDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			BaseURL:      getenvWithDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		},
		Targets: targets.DefaultConfig(),
		Plans:   models.DefaultPlans(),
	}

	if strategy := os.Getenv("TARGET_STRATEGY"); strategy != "" {
		cfg.Targets.Strategy = targets.Strategy(strategy)
	}

	if path := os.Getenv("NUTRITRACK_TUNING_FILE"); path != "" {
		tuning, err := LoadTuning(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyTuning(tuning)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTuning parses a YAML tuning file.
func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed reading tuning file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed parsing tuning file %s: %w", path, err)
	}
	return t, nil
}

// ApplyTuning overlays the non-zero values of t onto the configuration.
func (c *Config) ApplyTuning(t Tuning) {
	if t.Strategy != "" {
		c.Targets.Strategy = t.Strategy
	}
	for level, v := range t.ActivityMultipliers {
		c.Targets.ActivityMultipliers[level] = v
	}
	for goal, v := range t.GoalFactors {
		c.Targets.GoalFactors[goal] = v
	}
	for level, v := range t.LegacyActivity {
		c.Targets.LegacyActivity[level] = v
	}
	for goal, v := range t.LegacyGoalFactors {
		c.Targets.LegacyGoalFactors[goal] = v
	}
	if t.ProteinShare != 0 {
		c.Targets.ProteinShare = t.ProteinShare
	}
	if t.FatShare != 0 {
		c.Targets.FatShare = t.FatShare
	}
	if t.Tolerance != 0 {
		c.Targets.Tolerance = t.Tolerance
	}
	for _, p := range t.Plans {
		if p.Name == "" {
			p.Name = string(p.ID)
		}
		c.Plans[p.ID] = p
	}
}

// Validate ensures that required configuration fields are populated and resolves the location.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Tracking.BoundaryHour < 0 || c.Tracking.BoundaryHour > 23 {
		return fmt.Errorf("DAY_BOUNDARY_HOUR must be within 0..23, got %d", c.Tracking.BoundaryHour)
	}

	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Tracking.Timezone, err)
	}
	c.Tracking.Location = loc

	if c.Tracking.RetentionDays < 1 {
		return errors.New("RETENTION_DAYS must be at least 1")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("STORE_PATH must be provided for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be provided for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN must be provided for the postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("REDIS_ADDR must be provided for the redis backend")
		}
	case BackendMongoDB:
		if c.Store.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not supported", c.Store.Backend)
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	if (c.WhatsApp.AccessToken == "") != (c.WhatsApp.PhoneNumberID == "") {
		return errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be provided together")
	}
	if c.WhatsApp.Enabled() && c.WhatsApp.VerifyToken == "" {
		return errors.New("WHATSAPP_VERIFY_TOKEN is required when WhatsApp is enabled")
	}

	if err := c.Targets.Validate(); err != nil {
		return fmt.Errorf("invalid target tuning: %w", err)
	}

	for id, p := range c.Plans {
		if p.MonthlyLimit < 0 && p.MonthlyLimit != models.Unlimited {
			return fmt.Errorf("plan %s has invalid monthly limit %d", id, p.MonthlyLimit)
		}
	}
	if _, ok := c.Plans[c.Tracking.DefaultPlan]; !ok {
		return fmt.Errorf("DEFAULT_PLAN %q is not in the plan catalog", c.Tracking.DefaultPlan)
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
