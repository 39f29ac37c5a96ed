package app

import (
	"fmt"

	"offgrid-chat/internal/attachment"
	"offgrid-chat/internal/auth"
	"offgrid-chat/internal/config"
	"offgrid-chat/internal/repository/db"
	"offgrid-chat/internal/repository/postgres"
	"offgrid-chat/internal/repository/sqlite"
)

// App holds all application dependencies and configuration
type App struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	Config *config.AppConfig
	// Attachment storage
	Attachments *attachment.Store
	// Access control
	Auth *auth.Authenticator
}

// New wires the application from config: it opens the configured storage
// backend, prepares attachment storage, and builds the authenticator.
func New(appConfig *config.AppConfig) (*App, error) {
	database, err := openDatabase(appConfig)
	if err != nil {
		return nil, err
	}

	authenticator, err := auth.NewAuthenticator(appConfig.Auth)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("error building authenticator: %w", err)
	}

	return &App{
		DB:          database,
		Config:      appConfig,
		Attachments: attachment.NewStore(appConfig.Attachments.Dir),
		Auth:        authenticator,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func openDatabase(appConfig *config.AppConfig) (db.Database, error) {
	switch appConfig.Storage.Backend {
	case config.BackendSQLite:
		return sqlite.NewSQLiteDB(appConfig.Storage.SQLitePath)
	case config.BackendPostgres:
		return postgres.NewPostgresDB(appConfig.Storage.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", appConfig.Storage.Backend)
	}
}
