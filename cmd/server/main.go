package main

import (
	"net/http"

	"offgrid-chat/internal/api/handlers"
	"offgrid-chat/internal/app"
	"offgrid-chat/internal/config"
	"offgrid-chat/internal/logger"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	application, err := app.New(appConfig)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	chatHandler := handlers.NewChatHandlers(application)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return enableCORS(application.Auth.Middleware(h).ServeHTTP)
	}

	// Go 1.22+ routing with method and path patterns
	mux := http.NewServeMux()

	// CORS preflight handler for OPTIONS requests
	corsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusOK)
	}

	// Public routes
	mux.HandleFunc("POST /api/login", enableCORS(chatHandler.LoginHandler))
	mux.HandleFunc("OPTIONS /api/login", corsHandler)
	mux.HandleFunc("GET /api/health", enableCORS(chatHandler.HealthHandler))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)

	// Protected routes
	mux.HandleFunc("POST /api/chat", protected(chatHandler.ChatHandler))
	mux.HandleFunc("OPTIONS /api/chat", corsHandler)
	mux.HandleFunc("GET /api/conversations", protected(chatHandler.GetConversationsHandler))
	mux.HandleFunc("POST /api/conversations", protected(chatHandler.CreateConversationHandler))
	mux.HandleFunc("OPTIONS /api/conversations", corsHandler)
	mux.HandleFunc("GET /api/conversations/{id}/messages", protected(chatHandler.GetConversationTurnsHandler))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages", corsHandler)
	mux.HandleFunc("PUT /api/conversations/{id}", protected(chatHandler.RenameConversationHandler))
	mux.HandleFunc("DELETE /api/conversations/{id}", protected(chatHandler.DeleteConversationHandler))
	mux.HandleFunc("OPTIONS /api/conversations/{id}", corsHandler)

	port := appConfig.Server.Port
	logger.Log.WithField("port", port).Info("Server starting")
	logger.Log.WithField("auth_enabled", application.Auth.Enabled()).Info("Access control configured")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Log.WithError(err).Fatal("Server failed to start")
	}
}
