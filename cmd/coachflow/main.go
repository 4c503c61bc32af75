package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/growthloop/coachflow/internal/api"
	"github.com/growthloop/coachflow/internal/flow"
	"github.com/growthloop/coachflow/internal/genai"
	"github.com/growthloop/coachflow/internal/store"
	"github.com/growthloop/coachflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CoachFlow state data
	DefaultStateDir = "/var/lib/coachflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "coachflow.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	sessionStore, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()

	generator := buildGenerator(flags)

	engine := flow.New(
		flow.WithStore(sessionStore),
		flow.WithGenerator(generator),
		flow.WithThresholds(parseThresholds(*flags.thresholds)),
	)

	server := api.NewServer(engine, buildAPIOptions(flags)...)

	slog.Info("Bootstrapping CoachFlow", "llm_configured", generator != nil, "api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("CoachFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CoachFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	OpenAIKey   string
	LLMBaseURL  string
	LLMModel    string
	APIAddr     string
	Thresholds  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	llmBaseURL *string
	llmModel   *string
	apiAddr    *string
	thresholds *string
}

// initializeLogger sets up structured logging. Debug level unless
// COACHFLOW_DEBUG is set to a false value.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COACHFLOW_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    os.Getenv("COACHFLOW_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		LLMBaseURL:  os.Getenv("COACHFLOW_LLM_BASE_URL"),
		LLMModel:    os.Getenv("COACHFLOW_LLM_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		Thresholds:  os.Getenv("COACHFLOW_STAGE_THRESHOLDS"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COACHFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("COACHFLOW_STATE_DIR found in environment", "state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL set, using SQLite in state directory", "db_path", config.DatabaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("Environment configuration loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COACHFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"COACHFLOW_STAGE_THRESHOLDS", config.Thresholds)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for CoachFlow data (overrides $COACHFLOW_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		llmBaseURL: flag.String("llm-base-url", config.LLMBaseURL, "OpenAI-compatible base URL (overrides $COACHFLOW_LLM_BASE_URL)"),
		llmModel:   flag.String("llm-model", config.LLMModel, "completion model (overrides $COACHFLOW_LLM_MODEL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		thresholds: flag.String("stage-thresholds", config.Thresholds, "stage progression depths as reflection,action,follow_up (overrides $COACHFLOW_STAGE_THRESHOLDS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"llmBaseURL", *flags.llmBaseURL,
		"llmModel", *flags.llmModel,
		"apiAddr", *flags.apiAddr,
		"thresholds", *flags.thresholds)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore constructs the session store from the configured DSN
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenerator constructs the GenAI client, or nil when no key is configured.
// Without a key the engine serves every turn from the fallback responses.
func buildGenerator(flags Flags) flow.ResponseGenerator {
	if *flags.openaiKey == "" {
		slog.Warn("No OpenAI API key configured, running in fallback-only mode")
		return nil
	}

	genaiOpts := []genai.Option{
		genai.WithAPIKey(*flags.openaiKey),
		genai.WithTimeout(util.ParseDurationEnv("COACHFLOW_LLM_TIMEOUT", genai.DefaultTimeout)),
		genai.WithMaxTokens(int64(util.ParseIntEnv("COACHFLOW_LLM_MAX_TOKENS", genai.DefaultMaxTokens))),
	}
	if *flags.llmBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.llmBaseURL))
	}
	if *flags.llmModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.llmModel))
	}

	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client, running in fallback-only mode", "error", err)
		return nil
	}
	return client
}

// parseThresholds parses "reflection,action,follow_up" depths (e.g. "5,7,9").
// Invalid input falls back to the defaults.
func parseThresholds(val string) flow.Thresholds {
	defaults := flow.DefaultThresholds()
	if val == "" {
		return defaults
	}

	parts := strings.Split(val, ",")
	if len(parts) != 3 {
		slog.Warn("Invalid stage thresholds, using defaults", "value", val)
		return defaults
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			slog.Warn("Invalid stage threshold entry, using defaults", "value", val)
			return defaults
		}
		nums[i] = n
	}
	return flow.Thresholds{Reflection: nums[0], ActionPlanning: nums[1], FollowUp: nums[2]}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if origins := os.Getenv("COACHFLOW_ALLOWED_ORIGINS"); origins != "" {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(strings.Split(origins, ",")))
	}
	return apiOpts
}
