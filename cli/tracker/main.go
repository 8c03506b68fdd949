package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/api"
	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/daniil11ru/bustrack/cli/tracker/broadcast"
	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/config"
	"github.com/daniil11ru/bustrack/cli/tracker/connector"
	"github.com/daniil11ru/bustrack/cli/tracker/directory"
	"github.com/daniil11ru/bustrack/cli/tracker/domain"
	"github.com/daniil11ru/bustrack/cli/tracker/server"
	"github.com/daniil11ru/bustrack/cli/tracker/session"
	"github.com/daniil11ru/bustrack/cli/tracker/storage"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configFilePath := ""
	pflag.StringVarP(&configFilePath, "config", "c", "", "путь до конфига")
	pflag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Не удалось прочитать .env: %v", err)
	}

	settings, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
		return
	}

	configureLogging(settings)

	if params, ok := settings.Directory["postgresql"]; ok {
		if err := applyMigrations(settings.MigrationsPath, connector.FillSettings(params).URL()); err != nil {
			log.Fatalf("Не удалось применить миграции: %v", err)
		}
	}

	store, name, err := directory.Load(settings.Directory)
	if err != nil {
		log.Fatalf("Не удалось подключить справочник: %v", err)
		return
	}
	log.WithField("directory", name).Info("Справочник подключен")

	exportRepository := storage.NewRepository()
	if err := exportRepository.LoadStorages(settings.Export); err != nil {
		log.Fatalf("Не удалось подключить хранилища экспорта: %v", err)
		return
	}
	var (
		exporter      domain.Exporter
		asyncExporter *storage.AsyncRepository
	)
	if exportRepository.Len() > 0 {
		asyncExporter = storage.NewAsyncRepository(exportRepository, settings.ExportBuffer, settings.ExportWorkers)
		exporter = asyncExporter
	}

	if err := run(settings, store, exporter); err != nil {
		log.Errorf("Сервис остановлен с ошибкой: %v", err)
	}

	if asyncExporter != nil {
		asyncExporter.Close()
	}
	exportRepository.Close()
	if err := store.Close(); err != nil {
		log.WithField("err", err).Warn("Ошибка закрытия справочника")
	}
	log.Info("Сервис остановлен")
}

func run(settings config.Settings, store directory.Directory, exporter domain.Exporter) error {
	liveLocations := cache.New()
	broadcaster := broadcast.New(liveLocations)
	sessions := session.NewTracker()
	authenticator := auth.NewAuthenticator(settings.Auth.Secret)

	flushPosition := &domain.FlushPosition{
		Cache:     liveLocations,
		Sessions:  sessions,
		Directory: store,
		Exporter:  exporter,
		Timeout:   settings.GetFlushTimeout(),
	}
	resolvePosition := &domain.ResolvePosition{
		Cache:       liveLocations,
		Broadcaster: broadcaster,
		Directory:   store,
		Timeout:     settings.GetResolveTimeout(),
	}

	realtime := server.New(server.Options{
		Authenticator: authenticator,
		Broadcaster:   broadcaster,
		Sessions:      sessions,
		Resolver:      resolvePosition,
		Flush:         flushPosition,
		Exporter:      exporter,
		ReporterRoles: auth.ParseRoles(settings.Auth.ReporterRoles),
		TTL:           settings.GetConnTTL(),
		SendBuffer:    settings.SendBuffer,
		AllowedOrigin: settings.FrontendURL,
	})

	if settings.StaleReportCron != "" {
		reportStale := &domain.ReportStale{
			Cache:            liveLocations,
			StaleAfter:       settings.GetStaleAfter(),
			StationaryMeters: settings.StationaryMeters,
		}
		if err := reportStale.Initialize(settings.StaleReportCron); err != nil {
			return fmt.Errorf("не удалось запланировать проверку устаревших местоположений: %w", err)
		}
		defer reportStale.Shutdown()
	}

	if !settings.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Handler{
		Resolver:    resolvePosition,
		Broadcaster: broadcaster,
		Cache:       liveLocations,
		Sessions:    sessions,
		Connections: realtime.Connections,
		Environment: settings.Environment,
	})
	httpServer := &http.Server{
		Addr:              settings.GetListenAddress(),
		Handler:           api.NewRouter(handler, authenticator, realtime, settings.FrontendURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Запущен сервер %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("не удалось запустить сервер: %w", err)
		}
	case <-ctx.Done():
		log.Info("Получен сигнал остановки")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("Ошибка остановки HTTP-сервера")
	}
	if err := realtime.Close(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("Не все соединения закрыты")
	}
	if err := flushPosition.Wait(shutdownCtx); err != nil {
		log.WithField("err", err).Error("Не все местоположения сохранены в справочник")
	}
	return nil
}

func getConfig(configFilePath string) (config.Settings, error) {
	if configFilePath == "" {
		return config.Settings{}, errors.New("не задан путь до конфига")
	}

	c, err := config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %w", err)
	}
	return c, nil
}

func configureLogging(settings config.Settings) {
	log.SetLevel(settings.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if settings.LogFilePath != "" {
		logDir := filepath.Dir(settings.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Не получилось создать директорию для логов: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   settings.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     settings.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

func applyMigrations(migrationsPath, databaseURL string) error {
	sourceURL := migrationsPath
	if !hasScheme(sourceURL) {
		sourceURL = "file://" + filepath.ToSlash(migrationsPath)
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Нет новых миграций для применения")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %v", err)
	}

	log.Info("Миграции успешно применены")
	return nil
}

func hasScheme(path string) bool {
	return strings.Contains(path, "://")
}
