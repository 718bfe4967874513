package server

import "github.com/faciam-dev/gcform/internal/server/middleware"

// Config holds the HTTP settings of the API server.
type Config struct {
	// Origins allowed by CORS.
	Origins []string
	// Tokens accepted for authoring routes. Empty disables authentication.
	Tokens middleware.Tokens
}

// ConfigFromEnv reads ALLOWED_ORIGINS and FORM_API_TOKENS.
func ConfigFromEnv() Config {
	return Config{Origins: allowedOrigins(), Tokens: apiTokens()}
}
