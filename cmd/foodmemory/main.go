// Food Memory Bot entry point: configuration loading, module wiring, and the
// event loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bumperbrother/foodmemory/internal/flow"
	"github.com/bumperbrother/foodmemory/internal/genai"
	"github.com/bumperbrother/foodmemory/internal/lockfile"
	"github.com/bumperbrother/foodmemory/internal/messaging"
	"github.com/bumperbrother/foodmemory/internal/places"
	"github.com/bumperbrother/foodmemory/internal/store"
	"github.com/bumperbrother/foodmemory/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Food Memory Bot state data
	DefaultStateDir = "/var/lib/foodmemory"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "foodmemory.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.telegramToken == "" {
		slog.Error("No Telegram bot token configured, set TELEGRAM_BOT_TOKEN")
		os.Exit(1)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := newStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gen, err := genai.NewClient(*flags.genaiProvider, buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to build GenAI client", "error", err)
		os.Exit(1)
	}

	pl := newPlacesClient(flags)

	messenger, err := messaging.NewTelegramService(*flags.telegramToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	coordinator := flow.NewCoordinator(messenger, st, gen, pl, buildFlowOptions(config)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := messenger.Start(ctx); err != nil {
		slog.Error("Failed to start Telegram polling", "error", err)
		os.Exit(1)
	}
	defer messenger.Stop()

	slog.Info("Food Memory Bot running", "allowedChats", len(config.AllowedChatIDs), "provider", *flags.genaiProvider)
	if err := coordinator.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Food Memory Bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Food Memory Bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	TelegramToken  string
	GenAIProvider  string
	AnthropicKey   string
	OpenAIKey      string
	GenAIModel     string
	PlacesKey      string
	LocationBias   string
	DatabaseDSN    string
	StateDir       string
	AllowedChatIDs []int64
}

// Flags holds command line flag values
type Flags struct {
	telegramToken *string
	genaiProvider *string
	genaiModel    *string
	anthropicKey  *string
	openaiKey     *string
	placesKey     *string
	locationBias  *string
	stateDir      *string
	dbDSN         *string
}

// initializeLogger sets up structured logging. FOODMEMORY_DEBUG enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("FOODMEMORY_DEBUG", false) {
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
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		GenAIProvider:  os.Getenv("GENAI_PROVIDER"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		GenAIModel:     os.Getenv("GENAI_MODEL"),
		PlacesKey:      os.Getenv("GOOGLE_PLACES_API_KEY"),
		LocationBias:   os.Getenv("DEFAULT_LOCATION_BIAS"),
		DatabaseDSN:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("FOODMEMORY_STATE_DIR"),
		AllowedChatIDs: util.ParseChatIDsEnv("ALLOWED_CHAT_IDS"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FOODMEMORY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("FOODMEMORY_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"GENAI_PROVIDER", config.GenAIProvider,
		"ANTHROPIC_API_KEY_SET", config.AnthropicKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GOOGLE_PLACES_API_KEY_SET", config.PlacesKey != "",
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"FOODMEMORY_STATE_DIR", config.StateDir,
		"ALLOWED_CHAT_IDS", len(config.AllowedChatIDs))

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		telegramToken: flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		genaiProvider: flag.String("genai-provider", config.GenAIProvider, "GenAI provider, anthropic or openai (overrides $GENAI_PROVIDER)"),
		genaiModel:    flag.String("genai-model", config.GenAIModel, "GenAI model identifier (overrides $GENAI_MODEL)"),
		anthropicKey:  flag.String("anthropic-api-key", config.AnthropicKey, "Anthropic API key (overrides $ANTHROPIC_API_KEY)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		placesKey:     flag.String("places-api-key", config.PlacesKey, "Google Places API key (overrides $GOOGLE_PLACES_API_KEY)"),
		locationBias:  flag.String("location-bias", config.LocationBias, "location appended to place searches (overrides $DEFAULT_LOCATION_BIAS)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for Food Memory Bot data (overrides $FOODMEMORY_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseDSN, "database DSN, a PostgreSQL URL or SQLite file path (overrides $DATABASE_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"telegramTokenSet", *flags.telegramToken != "",
		"genaiProvider", *flags.genaiProvider,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"placesKeySet", *flags.placesKey != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// newStore opens the storage backend matching the configured DSN
func newStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	key := *flags.anthropicKey
	if *flags.genaiProvider == genai.ProviderOpenAI {
		key = *flags.openaiKey
	}
	if key != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(key))
	}
	if *flags.genaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.genaiModel))
	}
	return genaiOpts
}

// newPlacesClient builds the place lookup client. Without an API key the
// lookup is disabled and restaurants are stored unenriched.
func newPlacesClient(flags Flags) places.Client {
	if *flags.placesKey == "" {
		slog.Info("No Google Places API key configured, place enrichment disabled")
		return places.NoopClient{}
	}
	placesOpts := []places.Option{places.WithAPIKey(*flags.placesKey)}
	if *flags.locationBias != "" {
		placesOpts = append(placesOpts, places.WithLocationBias(*flags.locationBias))
	}
	client, err := places.NewGoogleClient(placesOpts...)
	if err != nil {
		slog.Error("Failed to build Places client, place enrichment disabled", "error", err)
		return places.NoopClient{}
	}
	return client
}

// buildFlowOptions constructs coordinator configuration options
func buildFlowOptions(config Config) []flow.Option {
	var flowOpts []flow.Option
	if len(config.AllowedChatIDs) > 0 {
		flowOpts = append(flowOpts, flow.WithAllowedChats(config.AllowedChatIDs))
	}
	return flowOpts
}
