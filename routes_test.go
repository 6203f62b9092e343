package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"taskflow/config"
	"taskflow/handlers"
	"taskflow/realtime"

	"github.com/stretchr/testify/assert"
)

func TestLoadRoutesCORS(t *testing.T) {
	h := handlers.New(nil, nil, nil, realtime.NewHub(1), nil)
	router := LoadRoutes(h, &config.Config{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/workspace/create", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/workspace/create", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoadRoutesRequiresToken(t *testing.T) {
	h := handlers.New(nil, nil, nil, realtime.NewHub(1), nil)
	router := LoadRoutes(h, &config.Config{AllowedOrigins: []string{"*"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/info", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
