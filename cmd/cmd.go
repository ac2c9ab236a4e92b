package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/vevor-integration/internal/pkg/config"
	"github.com/anicoll/vevor-integration/internal/pkg/database"
	"github.com/anicoll/vevor-integration/internal/pkg/database/migration"
	"github.com/anicoll/vevor-integration/internal/pkg/decoder"
	"github.com/anicoll/vevor-integration/internal/pkg/modbus"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/mqtt"
	"github.com/anicoll/vevor-integration/internal/pkg/poller"
	"github.com/anicoll/vevor-integration/internal/pkg/publisher"
	"github.com/anicoll/vevor-integration/internal/pkg/registers"
	"github.com/anicoll/vevor-integration/internal/pkg/server"
)

const (
	mqttPublisher     = "mqtt"
	postgresPublisher = "postgres"

	cleanupSchedule = "0 3 * * *"
)

func BridgeCommand(ctx *cli.Context) error {
	tuning, err := config.LoadTuning()
	if err != nil {
		return err
	}
	cfg := &config.Config{
		ModbusCfg: &config.ModbusConfig{
			Port:     ctx.String("modbus-port"),
			SlaveID:  ctx.Int("slave"),
			BaudRate: ctx.Int("baud-rate"),
			Timeout:  ctx.Duration("modbus-timeout"),
		},
		MqttCfg: &config.MqttConfig{
			Host:     ctx.String("mqtt-host"),
			Port:     ctx.Int("mqtt-port"),
			Username: ctx.String("mqtt-user"),
			Password: ctx.String("mqtt-pass"),
		},
		DatabaseCfg: &config.DatabaseConfig{
			URL:              ctx.String("database-url"),
			MigrationsFolder: ctx.String("migrations-folder"),
			RetentionDays:    ctx.Int("retention-days"),
		},
		PollInterval: ctx.Duration("poll-interval"),
		RegisterMap:  ctx.String("register-map"),
		HTTPAddr:     ctx.String("http-addr"),
		LogLevel:     ctx.String("log-level"),
		Tuning:       tuning,
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(sigCtx, cfg)
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()

	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	regMap, err := loadRegisterMap(cfg.RegisterMap)
	if err != nil {
		return err
	}
	dec, err := decoder.New(regMap, decoder.WithPVPowerCeiling(cfg.Tuning.PVPowerCeilingW))
	if err != nil {
		return err
	}

	source, err := modbus.New(modbus.Config{
		Address:  cfg.ModbusCfg.Port,
		SlaveID:  byte(cfg.ModbusCfg.SlaveID),
		BaudRate: cfg.ModbusCfg.BaudRate,
		Timeout:  cfg.ModbusCfg.Timeout,
	})
	if err != nil {
		return err
	}

	pub := publisher.New()

	// discovery configs are re-sent after every reconnect
	mqttClient := mqtt.NewClient(mqtt.Config{
		Host:     cfg.MqttCfg.Host,
		Port:     cfg.MqttCfg.Port,
		Username: cfg.MqttCfg.Username,
		Password: cfg.MqttCfg.Password,
	}, func() { pub.Reset(mqttPublisher) })
	mqttSvc := mqtt.New(mqttClient, model.DefaultDevice, mqtt.DefaultDiscoveryPrefix)
	if err := mqttSvc.Connect(); err != nil {
		return fmt.Errorf("connect to mqtt: %w", err)
	}
	defer mqttSvc.Close()
	if err := pub.RegisterPublisher(mqttPublisher, mqttSvc); err != nil {
		return err
	}

	var history HistoryStore
	if cfg.DatabaseCfg.Enabled() {
		if err := migration.Migrate(cfg.DatabaseCfg.URL, cfg.DatabaseCfg.MigrationsFolder); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseCfg.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		db := database.NewDatabase(pool)
		defer db.Close()
		if err := pub.RegisterPublisher(postgresPublisher, db); err != nil {
			return err
		}
		history = db
	}

	return serve(ctx, cfg, source, dec, pub, history)
}

func loadRegisterMap(path string) (registers.Map, error) {
	if path == "" {
		return registers.Default()
	}
	return registers.Load(path)
}

// serve runs the poll loop, the status server and the history cleanup until
// ctx is cancelled or one of them fails. A status server that cannot listen
// is logged and left down; polling carries on without it.
func serve(ctx context.Context, cfg *config.Config, source RegisterSource, dec *decoder.Decoder, pub poller.Publisher, history HistoryStore) error {
	defer source.Close()
	logger := zap.L()
	eg, ctx := errgroup.WithContext(ctx)

	thresholds := cfg.Tuning.Thresholds()
	p := poller.New(poller.Config{
		Interval:   cfg.PollInterval,
		Thresholds: &thresholds,
	}, source, dec, pub)

	eg.Go(func() error {
		return p.Run(ctx)
	})

	if history != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, history, cfg.DatabaseCfg.Retention())
		})
	}

	if cfg.HTTPAddr != "" {
		srv := newHTTPServer(cfg.HTTPAddr, server.New(p.State(), history).Handler())
		eg.Go(func() error {
			logger.Info("serving status", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server stopped", zap.String("addr", cfg.HTTPAddr), zap.Error(err))
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := eg.Wait()
	logger.Info("bridge stopped")
	return err
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Handler:      h,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
}

type cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// cronDbCleanup prunes history once at startup and then daily until ctx ends.
func cronDbCleanup(ctx context.Context, db cleaner, retention time.Duration) error {
	cleanup := func() {
		deleted, err := db.Cleanup(ctx, retention)
		if err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			return
		}
		zap.L().Info("cleaned up database", zap.Int64("deleted", deleted), zap.Duration("retention", retention))
	}
	cleanup()

	c := cron.New()
	if _, err := c.AddFunc(cleanupSchedule, cleanup); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
