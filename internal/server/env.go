package server

import (
	"github.com/faciam-dev/gcform/internal/logger"
	"github.com/faciam-dev/gcform/internal/server/middleware"
	pkgutil "github.com/faciam-dev/gcform/pkg/util"
)

// allowedOrigins returns the list of origins allowed for CORS.
func allowedOrigins() []string {
	return pkgutil.GetEnvList("ALLOWED_ORIGINS", "http://localhost:5173")
}

// apiTokens reads FORM_API_TOKENS. Without tokens every caller authors
// forms as the anonymous actor.
func apiTokens() middleware.Tokens {
	tokens := middleware.ParseTokens(pkgutil.GetEnv("FORM_API_TOKENS", ""))
	if len(tokens) == 0 {
		logger.L.Warn("FORM_API_TOKENS is not set; authoring routes are open")
	}
	return tokens
}
