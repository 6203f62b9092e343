package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Chaves lidas do ambiente (ou do .env).
const (
	KeyServerPort     = "SERVER_PORT"
	KeyCORSOrigins    = "CORS_ALLOWED_ORIGINS"
	KeyDatabaseURL    = "DATABASE_URL"
	KeyDBHost         = "DB_HOST"
	KeyDBPort         = "DB_PORT"
	KeyDBUser         = "DB_USER"
	KeyDBPassword     = "DB_PASSWORD"
	KeyDBName         = "DB_NAME"
	KeyDBSSLMode      = "DB_SSLMODE"
	KeyDBMaxOpenConns = "DB_MAX_OPEN_CONNS"
	KeyFirebaseCreds  = "FIREBASE_CREDENTIALS_PATH"
	KeyFirebaseAPIKey = "FIREBASE_API_KEY"
	KeySecureTokenURL = "FIREBASE_SECURE_TOKEN_URL"
	KeyActivityLog    = "ACTIVITY_LOG_ENABLED"
	KeyLogLevel       = "LOG_LEVEL"
	KeyLogFormat      = "LOG_FORMAT"
	KeyServerURL      = "TASKFLOW_SERVER"
)

// DefaultSecureTokenURL é o endpoint do Firebase que troca refresh tokens por ID tokens.
const DefaultSecureTokenURL = "https://securetoken.googleapis.com/v1/token"

// DatabaseConfig descreve a conexão com o PostgreSQL.
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// DSN monta a string de conexão aceita pelo lib/pq.
// DATABASE_URL, quando definida, tem precedência sobre os campos separados.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	parts := []string{
		"host=" + quoteDSN(d.Host),
		"port=" + quoteDSN(d.Port),
		"user=" + quoteDSN(d.User),
		"dbname=" + quoteDSN(d.Name),
		"sslmode=" + quoteDSN(d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v == "" || strings.ContainsAny(v, ` '\`) {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		return "'" + v + "'"
	}
	return v
}

type FirebaseConfig struct {
	CredentialsPath string
	APIKey          string
	SecureTokenURL  string
	ActivityLog     bool
}

type LogConfig struct {
	Level  string
	Format string
}

// Config agrega toda a configuração do servidor.
type Config struct {
	Port           string
	AllowedOrigins []string
	Database       DatabaseConfig
	Firebase       FirebaseConfig
	Log            LogConfig
}

// Load lê o .env (se existir) e depois as variáveis de ambiente.
// A ausência do .env não é erro.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("erro ao carregar o arquivo .env: %w", err)
	}
	return FromViper(NewViper())
}

// NewViper devolve uma instância do viper ligada ao ambiente com os valores padrão.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(KeyServerPort, "8080")
	v.SetDefault(KeyCORSOrigins, "*")
	v.SetDefault(KeyDBHost, "localhost")
	v.SetDefault(KeyDBPort, "5432")
	v.SetDefault(KeyDBUser, "postgres")
	v.SetDefault(KeyDBName, "taskflow")
	v.SetDefault(KeyDBSSLMode, "disable")
	v.SetDefault(KeyDBMaxOpenConns, 10)
	v.SetDefault(KeySecureTokenURL, DefaultSecureTokenURL)
	v.SetDefault(KeyActivityLog, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyServerURL, "http://localhost:8080")
	return v
}

// FromViper converte os valores do viper em Config e valida o resultado.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString(KeyServerPort),
		AllowedOrigins: splitList(v.GetString(KeyCORSOrigins)),
		Database: DatabaseConfig{
			URL:          v.GetString(KeyDatabaseURL),
			Host:         v.GetString(KeyDBHost),
			Port:         v.GetString(KeyDBPort),
			User:         v.GetString(KeyDBUser),
			Password:     v.GetString(KeyDBPassword),
			Name:         v.GetString(KeyDBName),
			SSLMode:      v.GetString(KeyDBSSLMode),
			MaxOpenConns: v.GetInt(KeyDBMaxOpenConns),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: v.GetString(KeyFirebaseCreds),
			APIKey:          v.GetString(KeyFirebaseAPIKey),
			SecureTokenURL:  v.GetString(KeySecureTokenURL),
			ActivityLog:     v.GetBool(KeyActivityLog),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica os valores que só falhariam mais tarde, na conexão.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("SERVER_PORT cannot be empty")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return errors.New("either DATABASE_URL or DB_HOST must be set")
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 0, got %d", c.Database.MaxOpenConns)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
