package main

import (
	"errors"
	"fmt"
	"os"

	"taskflow/config"

	"github.com/spf13/viper"
)

const (
	cfgKeyServer   = "server"
	cfgKeyAPIKey   = "api_key"
	cfgKeyTokenURL = "secure_token_url"

	keyServerEnv = config.KeyServerURL
)

// loadConfig lê config.yaml do diretório de configuração. O arquivo é opcional
// e as variáveis de ambiente do servidor valem como fallback.
func loadConfig(dir string) (*viper.Viper, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault(cfgKeyServer, "http://localhost:8080")
	v.SetDefault(cfgKeyTokenURL, config.DefaultSecureTokenURL)
	for key, env := range map[string]string{
		cfgKeyServer:   config.KeyServerURL,
		cfgKeyAPIKey:   config.KeyFirebaseAPIKey,
		cfgKeyTokenURL: config.KeySecureTokenURL,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
