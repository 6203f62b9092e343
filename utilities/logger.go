package utilities

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger é o logger global usado por servidor, SDK e CLI.
// Nunca é nil: antes de InitLogger ele já escreve em stderr no nível info.
var Logger = newLogger(os.Stderr, "info", "text")

// InitLogger inicializa o logger com o nível e o formato configurados.
// Formatos aceitos: "text" (padrão) e "json".
func InitLogger(level, format string) {
	Logger = newLogger(os.Stderr, level, format)
}

// SetOutput redireciona a saída do logger (usado nos testes e na CLI).
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

func newLogger(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000000"})
	}
	return l
}

// LogRequest registra informações sobre a requisição HTTP
func LogRequest(method, path, remoteAddr string, status int, duration time.Duration) {
	Logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"remote":   remoteAddr,
		"status":   status,
		"duration": duration.String(),
	}).Info("request")
}

// LogError registra erros com o contexto em que ocorreram
func LogError(err error, context string) {
	if err == nil {
		Logger.Error(context)
		return
	}
	Logger.WithError(err).Error(context)
}

// LogWarn registra situações inesperadas que não interrompem o fluxo
func LogWarn(format string, v ...interface{}) {
	Logger.Warnf(format, v...)
}

// LogDebug registra informações de debug
func LogDebug(format string, v ...interface{}) {
	Logger.Debugf(format, v...)
}

// LogInfo registra informações gerais
func LogInfo(format string, v ...interface{}) {
	Logger.Infof(format, v...)
}

// WithFields devolve uma entrada com campos estruturados.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(logrus.Fields(fields))
}
