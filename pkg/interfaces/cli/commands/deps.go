package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/services/jobs"
	"github.com/vsinha/csatrack/pkg/application/services/reconcile"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/infrastructure/config"
	"github.com/vsinha/csatrack/pkg/infrastructure/events"
	"github.com/vsinha/csatrack/pkg/infrastructure/logging"
	"github.com/vsinha/csatrack/pkg/infrastructure/notify"
	"github.com/vsinha/csatrack/pkg/infrastructure/store"
	"github.com/vsinha/csatrack/pkg/infrastructure/telemetry"
	"github.com/vsinha/csatrack/pkg/infrastructure/zoho"
)

// service bundles the long-lived dependencies of the fetch, serve and run-all commands
type service struct {
	cfg       config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	store     *store.Store
	audit     *events.MemoryStore
	zoho      *zoho.Client
	runner    *jobs.Runner
	notifier  jobs.Notifier
}

func loadConfig(opts *RootOptions) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newZohoClient(cfg config.Config, logger *zap.Logger) (*zoho.Client, error) {
	if !cfg.ZohoConfigured() {
		return nil, fmt.Errorf("zoho is not configured: zoho_organization_id and an access or refresh token are required")
	}
	return zoho.NewClient(zoho.Config{
		APIBase:           cfg.ZohoAPIBase,
		AccountsURL:       cfg.ZohoAccountsURL,
		OrganizationID:    cfg.ZohoOrganizationID,
		ClientID:          cfg.ZohoClientID,
		ClientSecret:      cfg.ZohoClientSecret,
		RefreshToken:      cfg.ZohoRefreshToken,
		AccessToken:       cfg.ZohoAccessToken,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Timeout:           cfg.HTTPTimeout(),
	}, zoho.WithLogger(logger))
}

func newEngine(skus []string, logger *zap.Logger, opts ...reconcile.Option) (*reconcile.Engine, error) {
	targets := make([]entities.SKU, len(skus))
	for i, s := range skus {
		targets[i] = entities.SKU(s)
	}
	opts = append([]reconcile.Option{reconcile.WithLogger(logger)}, opts...)
	return reconcile.NewEngine(reconcile.EngineConfig{TargetSKUs: targets}, opts...)
}

// newService wires config, telemetry, the store, the audit log, the Zoho client and the job runner
func newService(ctx context.Context, opts *RootOptions) (*service, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	s := &service{cfg: cfg, logger: logger}

	if s.telemetry, err = telemetry.Setup(ctx, telemetry.Config{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   cfg.ServiceName,
		Endpoint:      cfg.TracingEndpoint,
		SamplingRatio: cfg.TracingSamplingRatio,
	}, logger); err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	if s.store, err = store.Open(cfg.DBDriver, cfg.DBDSN); err != nil {
		s.Close(ctx)
		return nil, err
	}

	if s.zoho, err = newZohoClient(cfg, logger); err != nil {
		s.Close(ctx)
		return nil, err
	}

	s.audit = events.NewMemoryStore(events.DefaultRetention, logger)
	events.LogCompletions(s.audit, logger)

	engine, err := newEngine(cfg.TargetSKUs, logger, reconcile.WithEventStore(s.audit, time.Now))
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	if s.runner, err = jobs.NewRunner(engine, s.zoho, s.store, s.store,
		jobs.Config{Clinics: cfg.ClinicGroups, Workers: cfg.Workers},
		jobs.WithLogger(logger),
	); err != nil {
		s.Close(ctx)
		return nil, err
	}

	if cfg.SlackConfigured() {
		if s.notifier, err = notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID, logger); err != nil {
			s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

// Close releases the store and flushes telemetry
func (s *service) Close(ctx context.Context) {
	if s.runner != nil {
		s.runner.Wait()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing store", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("error shutting down telemetry", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}
