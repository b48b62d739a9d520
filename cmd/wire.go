package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	notifyhttp "github.com/bnema/grader/internal/adapters/notify/http"
	miniostore "github.com/bnema/grader/internal/adapters/objectstore/minio"
	attemptsrender "github.com/bnema/grader/internal/adapters/render/attempts"
	tomlrepo "github.com/bnema/grader/internal/adapters/repo/toml"
	chainstore "github.com/bnema/grader/internal/adapters/secrets/chain"
	"github.com/bnema/grader/internal/adapters/session/memory"
	"github.com/bnema/grader/internal/admission"
	"github.com/bnema/grader/internal/application"
	"github.com/bnema/grader/internal/config"
	"github.com/bnema/grader/internal/corrector"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/identity"
	"github.com/bnema/grader/internal/observability"
	"github.com/bnema/grader/internal/ports"
)

type app struct {
	cfg            config.Config
	log            logr.Logger
	catalog        *tomlrepo.ToolCatalog
	sessions       *memory.Store
	receipts       *identity.Receipts
	service        *application.AssessmentService
	renderAttempts func([]application.AttemptView, attemptsrender.RenderOptions) (string, error)
	stopTracing    func(context.Context) error
}

func wireApp(configPath string) (*app, error) {
	v, cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}
	observability.Register()

	stopTracing, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("wire tracing: %w", err)
	}

	catalog, err := tomlrepo.NewToolCatalog(v)
	if err != nil {
		return nil, fmt.Errorf("wire tool catalog: %w", err)
	}
	attempts, err := tomlrepo.NewAttemptStore(v)
	if err != nil {
		return nil, fmt.Errorf("wire attempt store: %w", err)
	}

	secretStore, err := chainstore.NewEnvFirstWithFileFallback(cfg.Reference.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}
	key, err := identity.LoadOrCreateKey(context.Background(), secretStore, identity.ReferenceKeyName)
	if err != nil {
		return nil, fmt.Errorf("wire reference key: %w", err)
	}
	codec, err := identity.NewCodec(key, identity.WithFailureDelay(cfg.Reference.FailureDelay))
	if err != nil {
		return nil, fmt.Errorf("wire reference codec: %w", err)
	}
	receipts, err := identity.NewReceipts(cfg.Reference.ReceiptSalt)
	if err != nil {
		return nil, fmt.Errorf("wire receipts: %w", err)
	}

	var notifier ports.OutcomeNotifier
	if cfg.Notifier.URL != "" {
		notifier = notifyhttp.NewNotifier(cfg.Notifier.URL, cfg.Notifier.Timeout, log)
	}

	var uploader corrector.Uploader
	if cfg.ObjectStore.Endpoint != "" {
		up, err := miniostore.NewUploader(miniostore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("wire object store: %w", err)
		}
		uploader = up
	}

	sessions := memory.NewStore(cfg.Server.SessionTTL, ports.SystemClock{})

	service, err := application.NewAssessmentService(application.Dependencies{
		Catalog:   catalog,
		Attempts:  attempts,
		Sessions:  sessions,
		Notifier:  notifier,
		Admission: admission.NewController(cfg.Admission.GlobalLimit),
		Codec:     codec,
		Receipts:  receipts,
		Invokers: func(tool domain.Tool) (corrector.Invoker, error) {
			return corrector.New(tool, corrector.Options{
				Log:           log,
				Uploader:      uploader,
				MaxResponseKB: cfg.Corrector.MaxResponseKB,
			})
		},
		Clock: ports.SystemClock{},
		Log:   log,
	}, application.Settings{
		DataDir:          cfg.Storage.DataDir,
		GracePeriod:      cfg.GracePeriod,
		DegradedWindow:   cfg.Admission.DegradedWindow,
		CorrectorTimeout: cfg.Corrector.Timeout,
		MaxUploadKB:      cfg.MaxUploadKB,
		MaxOutputKB:      cfg.Corrector.MaxOutputKB,
	})
	if err != nil {
		return nil, fmt.Errorf("wire assessment service: %w", err)
	}

	return &app{
		cfg:            cfg,
		log:            log,
		catalog:        catalog,
		sessions:       sessions,
		receipts:       receipts,
		service:        service,
		renderAttempts: attemptsrender.Render,
		stopTracing:    stopTracing,
	}, nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.stopTracing != nil {
		errs = append(errs, a.stopTracing(ctx))
	}
	return errors.Join(errs...)
}
