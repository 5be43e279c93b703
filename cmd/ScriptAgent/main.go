package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/api"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/genai"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/lockfile"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/messaging"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/session"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ScriptAgent state data
	DefaultStateDir = "/var/lib/scriptagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "scriptagent.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// File-backed stores share the state directory; refuse to start a second
	// instance over the same SQLite file.
	if !*flags.memoryStore && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.Acquire(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Store close failed", "error", err)
		}
	}()

	manager := session.NewManager(st, session.ManagerOpts{
		Responder: buildResponder(flags),
		Notifier:  buildNotifier(flags),
	})

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, manager, apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ScriptAgent with configured modules")
	if err := server.Run(ctx); err != nil {
		slog.Error("ScriptAgent failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ScriptAgent exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	LogLevelDebug bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	memoryStore *bool
	twilioSID   *string
	twilioToken *string
	twilioFrom  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("SCRIPTAGENT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SCRIPTAGENT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SCRIPTAGENT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for ScriptAgent data (overrides $SCRIPTAGENT_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the script store (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		memoryStore: flag.Bool("memory-store", false, "use the in-memory store instead of a database"),
		twilioSID:   flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken: flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:  flag.String("twilio-from-number", config.TwilioFrom, "Twilio sender number (overrides $TWILIO_FROM_NUMBER)"),
	}

	flag.Parse()

	// Follow the state directory when the DSN was left at the SQLite default.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"memoryStore", *flags.memoryStore)

	return flags
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.memoryStore {
		slog.Debug("Using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildResponder returns a generation client when an OpenAI key is
// configured, nil otherwise. Without one, sessions deliver script text
// directly.
func buildResponder(flags Flags) session.Responder {
	if *flags.openaiKey == "" {
		slog.Info("No OpenAI API key configured, responses use script text only")
		return nil
	}
	client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Warn("GenAI client initialization failed, responses use script text only", "error", err)
		return nil
	}
	return client
}

// buildNotifier returns a Twilio sender when credentials are complete, and
// the recording simulator otherwise.
func buildNotifier(flags Flags) messaging.Service {
	if *flags.twilioSID != "" && *flags.twilioToken != "" && *flags.twilioFrom != "" {
		svc, err := messaging.NewTwilioService(
			messaging.WithAccountSID(*flags.twilioSID),
			messaging.WithAuthToken(*flags.twilioToken),
			messaging.WithFromNumber(*flags.twilioFrom),
		)
		if err != nil {
			slog.Warn("Twilio initialization failed, using message simulator", "error", err)
			return messaging.NewSimService()
		}
		return svc
	}
	slog.Info("Twilio credentials not configured, using message simulator")
	return messaging.NewSimService()
}
