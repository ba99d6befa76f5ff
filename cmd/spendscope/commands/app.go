package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/DrSkyle/spendscope/pkg/engine"
	awssrc "github.com/DrSkyle/spendscope/pkg/engine/aws"
	"github.com/DrSkyle/spendscope/pkg/engine/pricing"
	"github.com/DrSkyle/spendscope/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
)

// runtime is the wired engine plus the SDK session it was built from.
type runtime struct {
	engine *engine.Engine
	logger *slog.Logger
	client *awssrc.Client
}

func newLogger() *slog.Logger {
	return engine.NewLogger(os.Stderr, cfg.JSONLogs, cfg.Verbose)
}

// newRuntime builds the engine against either the mock source or live AWS.
func newRuntime(ctx context.Context) (*runtime, error) {
	logger := newLogger()
	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	}

	rt := &runtime{logger: logger}

	if cfg.MockMode {
		logger.Info("Running in mock mode")
		src := awssrc.NewMockSource(time.Now, cfg.Fleet.MetricPeriod)
		opts = append(opts,
			engine.WithCostSource(src),
			engine.WithMetricSource(src),
			engine.WithInstanceSource(src),
			engine.WithPriceSource(pricing.Static(pricing.FallbackPrices())),
		)
	} else {
		client, err := awssrc.NewClient(ctx, cfg.Region, cfg.Profile, cfg.Verbose, logger)
		if err != nil {
			return nil, err
		}
		account, err := client.VerifyIdentity(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Identity verified", "account", account, "region", cfg.Region)

		src := awssrc.NewSource(client, cfg.Fleet.MetricPeriod, logger)
		opts = append(opts,
			engine.WithCostSource(src.Costs),
			engine.WithMetricSource(src.Metrics),
			engine.WithInstanceSource(src.Inventory),
			engine.WithPriceSource(pricing.NewClient(client.ConfigForRegion(awssrc.BillingRegion), logger)),
		)
		rt.client = client
	}

	eng, err := engine.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	rt.engine = eng
	return rt, nil
}

// Close flushes telemetry with a bounded deadline.
func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.engine.Close(ctx); err != nil {
		rt.logger.Warn("Telemetry shutdown failed", "error", err)
	}
}

// openStore resolves an export destination. S3 destinations in mock mode
// still need a real session, so one is created on demand.
func (rt *runtime) openStore(ctx context.Context, dest string) (storage.BlobStore, string, error) {
	var awsCfg aws.Config
	if storage.IsS3(dest) {
		if rt.client == nil {
			client, err := awssrc.NewClient(ctx, cfg.Region, cfg.Profile, cfg.Verbose, rt.logger)
			if err != nil {
				return nil, "", err
			}
			rt.client = client
		}
		awsCfg = rt.client.Config
	}
	return storage.Open(dest, awsCfg)
}
