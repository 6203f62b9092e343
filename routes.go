package main

import (
	"net/http"

	"taskflow/config"
	"taskflow/handlers"
	"taskflow/utilities"

	gorillahandlers "github.com/gorilla/handlers"
)

// LoadRoutes monta o roteador da API com CORS.
func LoadRoutes(h *handlers.Handlers, cfg *config.Config) http.Handler {
	r := h.Routes()

	headers := gorillahandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	methods := gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		allowedOrigins = []string{"*"}
		utilities.LogInfo("CORS_ALLOWED_ORIGINS não definida, permitindo todas as origens ('*'). Defina para maior segurança em produção.")
	}
	origins := gorillahandlers.AllowedOrigins(allowedOrigins)
	utilities.LogInfo("Configurando CORS com origens permitidas: %v", allowedOrigins)

	return gorillahandlers.CORS(headers, methods, origins)(r)
}
