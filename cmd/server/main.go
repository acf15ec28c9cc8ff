package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MachineDeskLabs/qr_support_svc/internal/httpapi"
	"github.com/MachineDeskLabs/qr_support_svc/internal/mailer"
	"github.com/MachineDeskLabs/qr_support_svc/internal/pipeline"
	"github.com/MachineDeskLabs/qr_support_svc/internal/storage"
	"github.com/MachineDeskLabs/qr_support_svc/internal/task"
)

const (
	commandUseName              = "server"
	commandShortDescription     = "Run the QR support server"
	commandLongDescription      = "Launch the QR support ticket HTTP server"
	missingConfigurationMessage = "missing required configuration"
	loggerCreationErrorMessage  = "logger"
	logEventListening           = "listening"
	logFieldAddress             = "addr"

	environmentKeyApplicationAddress   = "APP_ADDR"
	environmentKeyDatabaseDriver       = "DB_DRIVER"
	environmentKeyDatabaseDataSource   = "DB_DSN"
	environmentKeyAdminUsername        = "ADMIN_USER"
	environmentKeyAdminPasswordHash    = "ADMIN_PASS_HASH"
	environmentKeySessionSecret        = "SESSION_SECRET"
	environmentKeyPublicBaseURL        = "PUBLIC_BASE_URL"
	environmentKeySupportRecipient     = "SUPPORT_EMAIL_TO"
	environmentKeyEmailEnabled         = "EMAIL_ENABLED"
	environmentKeySMTPHost             = "SMTP_HOST"
	environmentKeySMTPPort             = "SMTP_PORT"
	environmentKeySMTPUsername         = "SMTP_USER"
	environmentKeySMTPPassword         = "SMTP_PASS"
	environmentKeySMTPStartTLS         = "SMTP_STARTTLS"
	environmentKeyMailFrom             = "MAIL_FROM"
	environmentKeyOutboxDirectory      = "OUTBOX_DIR"
	environmentKeySMTPTimeoutSeconds   = "SMTP_TIMEOUT_SECONDS"
	environmentKeyAutoRegisterMachines = "TICKETS_AUTO_REGISTER_MACHINES"
	environmentKeyDigestIntervalMin    = "DIGEST_INTERVAL_MINUTES"

	defaultApplicationAddress = ":8080"
	defaultDatabaseDriver     = storage.DriverNameSQLite
	defaultPublicBaseURL      = "http://localhost:8080"
	defaultSMTPPort           = 587
	defaultOutboxDirectory    = "outbox"
	defaultSMTPTimeoutSeconds = 20
	defaultDigestIntervalMin  = 60

	loggerContextOpenDatabase    = "open_db"
	loggerContextAutoMigrate     = "migrate"
	loggerContextServer          = "server"
	readHeaderTimeoutSeconds     = 5
	unexpectedArgumentsMessage   = "unexpected command arguments"
	commandInitializationFailure = "failed to configure command"
	flagNotDefinedMessage        = "flag %s not defined"
	environmentConfigurationErr  = "failed to apply environment configuration"
)

type stringFlagDefinition struct {
	environmentKey string
	flagName       string
	defaultValue   string
	usage          string
}

type integerFlagDefinition struct {
	environmentKey string
	flagName       string
	defaultValue   int
	usage          string
}

type booleanFlagDefinition struct {
	environmentKey string
	flagName       string
	defaultValue   bool
	usage          string
}

var stringFlagDefinitions = []stringFlagDefinition{
	{environmentKeyApplicationAddress, "app-addr", defaultApplicationAddress, "address for the HTTP server to listen on"},
	{environmentKeyDatabaseDriver, "db-driver", defaultDatabaseDriver, "database driver, sqlite or postgres"},
	{environmentKeyDatabaseDataSource, "db-dsn", "", "database connection string"},
	{environmentKeyAdminUsername, "admin-user", "", "admin portal username"},
	{environmentKeyAdminPasswordHash, "admin-pass-hash", "", "bcrypt hash of the admin portal password"},
	{environmentKeySessionSecret, "session-secret", "", "secret used to sign admin session cookies"},
	{environmentKeyPublicBaseURL, "public-base-url", defaultPublicBaseURL, "base URL encoded into QR codes"},
	{environmentKeySupportRecipient, "support-email-to", "", "address that receives ticket notifications"},
	{environmentKeySMTPHost, "smtp-host", "", "SMTP server host"},
	{environmentKeySMTPUsername, "smtp-user", "", "SMTP username"},
	{environmentKeySMTPPassword, "smtp-pass", "", "SMTP password"},
	{environmentKeyMailFrom, "mail-from", "", "sender address for ticket notifications"},
	{environmentKeyOutboxDirectory, "outbox-dir", defaultOutboxDirectory, "directory for fallback .eml files"},
}

var integerFlagDefinitions = []integerFlagDefinition{
	{environmentKeySMTPPort, "smtp-port", defaultSMTPPort, "SMTP server port"},
	{environmentKeySMTPTimeoutSeconds, "smtp-timeout-seconds", defaultSMTPTimeoutSeconds, "SMTP send timeout in seconds"},
	{environmentKeyDigestIntervalMin, "digest-interval-minutes", defaultDigestIntervalMin, "minutes between ticket digest log lines"},
}

var booleanFlagDefinitions = []booleanFlagDefinition{
	{environmentKeyEmailEnabled, "email-enabled", false, "send ticket notifications over SMTP"},
	{environmentKeySMTPStartTLS, "smtp-starttls", true, "use STARTTLS for SMTP connections"},
	{environmentKeyAutoRegisterMachines, "auto-register-machines", false, "register unknown machines on first ticket"},
}

var requiredConfiguration = map[string]string{
	environmentKeyDatabaseDataSource: "db-dsn",
	environmentKeyAdminUsername:      "admin-user",
	environmentKeyAdminPasswordHash:  "admin-pass-hash",
	environmentKeySessionSecret:      "session-secret",
	environmentKeySupportRecipient:   "support-email-to",
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress   string
	DatabaseDriver       string
	DatabaseDSN          string
	AdminUsername        string
	AdminPasswordHash    string
	SessionSecret        string
	PublicBaseURL        string
	SupportRecipient     string
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPStartTLS         bool
	MailFrom             string
	OutboxDirectory      string
	SMTPTimeout          time.Duration
	AutoRegisterMachines bool
	DigestInterval       time.Duration
}

// DatabaseOpener opens a database connection from storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.AutomaticEnv()
	commandFlags := command.Flags()

	for _, definition := range stringFlagDefinitions {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.String(definition.flagName, definition.defaultValue, definition.usage)
		if wireErr := application.wireFlag(commandFlags, definition.environmentKey, definition.flagName); wireErr != nil {
			return wireErr
		}
	}

	for _, definition := range integerFlagDefinitions {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.Int(definition.flagName, definition.defaultValue, definition.usage)
		if wireErr := application.wireFlag(commandFlags, definition.environmentKey, definition.flagName); wireErr != nil {
			return wireErr
		}
	}

	for _, definition := range booleanFlagDefinitions {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.Bool(definition.flagName, definition.defaultValue, definition.usage)
		if wireErr := application.wireFlag(commandFlags, definition.environmentKey, definition.flagName); wireErr != nil {
			return wireErr
		}
	}

	return nil
}

func (application *ServerApplication) wireFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}
	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationErr, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	loader := application.configurationLoader
	return ServerConfig{
		ApplicationAddress:   loader.GetString(environmentKeyApplicationAddress),
		DatabaseDriver:       strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDSN:          strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		AdminUsername:        strings.TrimSpace(loader.GetString(environmentKeyAdminUsername)),
		AdminPasswordHash:    strings.TrimSpace(loader.GetString(environmentKeyAdminPasswordHash)),
		SessionSecret:        strings.TrimSpace(loader.GetString(environmentKeySessionSecret)),
		PublicBaseURL:        strings.TrimSpace(loader.GetString(environmentKeyPublicBaseURL)),
		SupportRecipient:     strings.TrimSpace(loader.GetString(environmentKeySupportRecipient)),
		EmailEnabled:         loader.GetBool(environmentKeyEmailEnabled),
		SMTPHost:             strings.TrimSpace(loader.GetString(environmentKeySMTPHost)),
		SMTPPort:             loader.GetInt(environmentKeySMTPPort),
		SMTPUsername:         loader.GetString(environmentKeySMTPUsername),
		SMTPPassword:         loader.GetString(environmentKeySMTPPassword),
		SMTPStartTLS:         loader.GetBool(environmentKeySMTPStartTLS),
		MailFrom:             strings.TrimSpace(loader.GetString(environmentKeyMailFrom)),
		OutboxDirectory:      strings.TrimSpace(loader.GetString(environmentKeyOutboxDirectory)),
		SMTPTimeout:          time.Duration(loader.GetInt(environmentKeySMTPTimeoutSeconds)) * time.Second,
		AutoRegisterMachines: loader.GetBool(environmentKeyAutoRegisterMachines),
		DigestInterval:       time.Duration(loader.GetInt(environmentKeyDigestIntervalMin)) * time.Minute,
	}
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	valuesByKey := map[string]string{
		environmentKeyDatabaseDataSource: configuration.DatabaseDSN,
		environmentKeyAdminUsername:      configuration.AdminUsername,
		environmentKeyAdminPasswordHash:  configuration.AdminPasswordHash,
		environmentKeySessionSecret:      configuration.SessionSecret,
		environmentKeySupportRecipient:   configuration.SupportRecipient,
	}

	var missingParameters []string
	for environmentKey, flagName := range requiredConfiguration {
		if valuesByKey[environmentKey] == "" {
			missingParameters = append(missingParameters, flagName)
		}
	}
	if len(missingParameters) == 0 {
		return nil
	}

	sort.Strings(missingParameters)
	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriver,
		DataSourceName: serverConfig.DatabaseDSN,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	mailFrom := serverConfig.MailFrom
	if mailFrom == "" {
		mailFrom = serverConfig.SupportRecipient
	}
	dispatcher := mailer.NewDispatcher(mailer.Config{
		Enabled:         serverConfig.EmailEnabled,
		Host:            serverConfig.SMTPHost,
		Port:            serverConfig.SMTPPort,
		Username:        serverConfig.SMTPUsername,
		Password:        serverConfig.SMTPPassword,
		StartTLS:        serverConfig.SMTPStartTLS,
		From:            mailFrom,
		OutboxDirectory: serverConfig.OutboxDirectory,
		SendTimeout:     serverConfig.SMTPTimeout,
	}, logger)

	submissionPipeline := pipeline.New(database, logger, dispatcher, pipeline.Config{
		SupportRecipient:     serverConfig.SupportRecipient,
		AutoRegisterMachines: serverConfig.AutoRegisterMachines,
	})

	sessionStore := sessions.NewCookieStore([]byte(serverConfig.SessionSecret))
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	publicHandlers := httpapi.NewPublicHandlers(database, logger, submissionPipeline)
	adminHandlers := httpapi.NewAdminHandlers(database, logger, sessionStore, httpapi.Credentials{
		Username:     serverConfig.AdminUsername,
		PasswordHash: serverConfig.AdminPasswordHash,
	}, serverConfig.PublicBaseURL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerRoutes(router, publicHandlers, adminHandlers, sessionStore)

	digestScheduler := task.NewScheduler(serverConfig.DigestInterval, task.NewTicketDigestJob(database, logger))
	digestScheduler.Start(context.Background())
	defer digestScheduler.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal(loggerContextServer, zap.Error(serveErr))
	}

	return nil
}

func main() {
	_ = godotenv.Load()

	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
