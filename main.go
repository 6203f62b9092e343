package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/config"
	"taskflow/database"
	"taskflow/firebase"
	"taskflow/handlers"
	"taskflow/models"
	"taskflow/realtime"
	"taskflow/utilities"
)

const activityQueueSize = 1024

func main() {
	if err := run(); err != nil {
		utilities.LogError(err, "servidor encerrado com erro")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	utilities.InitLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	app, err := firebase.NewApp(ctx, cfg.Firebase.CredentialsPath)
	if err != nil {
		return err
	}
	authService, err := firebase.NewAuthService(ctx, app)
	if err != nil {
		return err
	}
	identity, err := firebase.NewIdentityService(ctx, cfg.Firebase.APIKey)
	if err != nil {
		return err
	}

	var activity firebase.ActivityRecorder = firebase.NopActivity{}
	if cfg.Firebase.ActivityLog {
		activityLog, err := firebase.NewActivityLog(ctx, app)
		if err != nil {
			return err
		}
		defer activityLog.Close()
		activity = activityLog
		utilities.LogInfo("Registro de atividade no Firestore habilitado")
	}
	queue := firebase.NewActivityQueue(activity, activityQueueSize)
	go queue.Run(ctx)

	hub := realtime.NewHub(realtime.DefaultBufferSize)
	defer hub.Close()

	feed, err := database.ListenChanges(db, cfg.Database.DSN())
	if err != nil {
		return err
	}
	go func() {
		err := feed.Run(ctx, func(e models.ChangeEvent) {
			hub.Publish(e)
			queue.Enqueue(e)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			utilities.LogError(err, "feed de mudanças encerrado")
			stop()
		}
	}()

	h := handlers.New(db, authService, identity, hub, queue)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           LoadRoutes(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utilities.LogInfo("Servidor iniciado na porta %s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	utilities.LogInfo("Encerrando o servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Fecha as inscrições para liberar as conexões de websocket, que o Shutdown não espera.
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}
