package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

// EnvConfigFile names an optional YAML file; PREPWISE_* variables override it.
const EnvConfigFile = "PREPWISE_CONFIG"

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	GCPProjectID string
	GCPLocation  string
	ModelName    string
	GeminiAPIKey string

	StorageBackend string // "memory", "firestore" or "sql"
	DBDriver       string // "sqlite" or "postgres"
	DBDSN          string
	UseMockLLM     bool // true = use mock even on GCP

	VapiAPIKey        string
	VapiBaseURL       string
	VapiWebhookSecret string

	GenerateWorkflowID    string
	InterviewerWorkflowID string

	// SessionSecret signs user session tokens; empty enables header auth.
	SessionSecret string

	CoverImages []string
}

type fileConfig struct {
	Mode     string `yaml:"mode"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	GCP struct {
		Project  string `yaml:"project"`
		Location string `yaml:"location"`
	} `yaml:"gcp"`

	LLM struct {
		Model   string `yaml:"model"`
		APIKey  string `yaml:"api_key"`
		UseMock *bool  `yaml:"use_mock"`
	} `yaml:"llm"`

	Storage struct {
		Backend string `yaml:"backend"`
		Driver  string `yaml:"driver"`
		DSN     string `yaml:"dsn"`
	} `yaml:"storage"`

	Vapi struct {
		APIKey                string `yaml:"api_key"`
		BaseURL               string `yaml:"base_url"`
		WebhookSecret         string `yaml:"webhook_secret"`
		GenerateWorkflowID    string `yaml:"generate_workflow_id"`
		InterviewerWorkflowID string `yaml:"interviewer_workflow_id"`
	} `yaml:"vapi"`

	SessionSecret string   `yaml:"session_secret"`
	CoverImages   []string `yaml:"cover_images"`
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getListEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pick(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Load reads the optional config file and the environment and builds the config.
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	var mode Mode
	switch getEnv("PREPWISE_MODE", pick(file.Mode, "local")) {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	useMock := mode == ModeLocal
	if file.LLM.UseMock != nil {
		useMock = *file.LLM.UseMock
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("PREPWISE_PORT", getEnv("PORT", pick(file.Port, "8080"))),
		LogLevel: getEnv("PREPWISE_LOG_LEVEL", pick(file.LogLevel, "info")),

		GCPProjectID: getEnv("PREPWISE_GCP_PROJECT", file.GCP.Project),
		GCPLocation:  getEnv("PREPWISE_GCP_LOCATION", pick(file.GCP.Location, "us-central1")),
		ModelName:    getEnv("PREPWISE_MODEL_NAME", pick(file.LLM.Model, "gemini-2.0-flash-001")),
		GeminiAPIKey: getEnv("PREPWISE_GEMINI_API_KEY", file.LLM.APIKey),

		StorageBackend: strings.ToLower(getEnv("PREPWISE_STORAGE_BACKEND", pick(file.Storage.Backend, "memory"))),
		DBDriver:       strings.ToLower(getEnv("PREPWISE_DB_DRIVER", pick(file.Storage.Driver, "sqlite"))),
		DBDSN:          getEnv("PREPWISE_DB_DSN", file.Storage.DSN),
		UseMockLLM:     getBoolEnv("PREPWISE_USE_MOCK_LLM", useMock),

		VapiAPIKey:        getEnv("PREPWISE_VAPI_API_KEY", file.Vapi.APIKey),
		VapiBaseURL:       getEnv("PREPWISE_VAPI_BASE_URL", file.Vapi.BaseURL),
		VapiWebhookSecret: getEnv("PREPWISE_VAPI_WEBHOOK_SECRET", file.Vapi.WebhookSecret),

		GenerateWorkflowID:    getEnv("PREPWISE_VAPI_GENERATE_WORKFLOW_ID", file.Vapi.GenerateWorkflowID),
		InterviewerWorkflowID: getEnv("PREPWISE_VAPI_INTERVIEWER_WORKFLOW_ID", file.Vapi.InterviewerWorkflowID),

		SessionSecret: getEnv("PREPWISE_SESSION_SECRET", file.SessionSecret),
		CoverImages:   getListEnv("PREPWISE_COVER_IMAGES", file.CoverImages),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks startup requirements. Missing workflow ids are not fatal:
// they surface as configuration errors when a call of that type begins.
func (c *Config) validate() error {
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		return fmt.Errorf("%w: PREPWISE_GCP_PROJECT must be set in gcp mode", domain.ErrConfig)
	}

	switch c.StorageBackend {
	case "memory", "sql":
	case "firestore":
		if c.GCPProjectID == "" {
			return fmt.Errorf("%w: PREPWISE_GCP_PROJECT is required for the firestore backend", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfig, c.StorageBackend)
	}

	if c.StorageBackend == "sql" && c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("%w: unknown db driver %q", domain.ErrConfig, c.DBDriver)
	}

	if !c.UseMockLLM && c.GeminiAPIKey == "" && c.GCPProjectID == "" {
		return fmt.Errorf("%w: set PREPWISE_GEMINI_API_KEY or PREPWISE_GCP_PROJECT, or enable the mock LLM", domain.ErrConfig)
	}
	return nil
}
