package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/uilens/pkg/uilens"
	"github.com/randalmurphal/uilens/pkg/uilens/capture"
	"github.com/randalmurphal/uilens/pkg/uilens/checkpoint"
	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/config"
	"github.com/randalmurphal/uilens/pkg/uilens/llm"
	"github.com/randalmurphal/uilens/pkg/uilens/observability"
	"github.com/randalmurphal/uilens/pkg/uilens/vision"
)

// commandContext carries the persistent flags and the lazily loaded
// configuration across subcommands.
type commandContext struct {
	configFlag  *string
	storeFlag   *string
	dirFlag     *string
	dbFlag      *string
	verboseFlag *bool

	configOnce sync.Once
	cfg        config.Config
	cfgErr     error
}

func newCommandContext(configFlag, storeFlag, dirFlag, dbFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		storeFlag:   storeFlag,
		dirFlag:     dirFlag,
		dbFlag:      dbFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			c.cfg = config.New(nil)
			return
		}
		c.cfg, c.cfgErr = config.FromFile(path)
	})
	return c.cfg, c.cfgErr
}

func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelInfo
	if *c.verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore selects and opens the checkpoint store. Flags win over the
// config file; the default is a filesystem store under the user cache dir.
func (c *commandContext) openStore() (checkpoint.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	storeCfg := cfg.Section("store")

	backend := strings.TrimSpace(*c.storeFlag)
	if backend == "" {
		backend = storeCfg.String("backend", "fs")
	}

	switch backend {
	case "fs":
		dir := strings.TrimSpace(*c.dirFlag)
		if dir == "" {
			dir = storeCfg.String("dir", "")
		}
		if dir == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("resolve checkpoint dir: %w", err)
			}
			dir = filepath.Join(cacheDir, "uilens", "checkpoints")
		}
		return checkpoint.NewFSStore(dir)

	case "sqlite":
		path := strings.TrimSpace(*c.dbFlag)
		if path == "" {
			path = storeCfg.String("db", "")
		}
		if path == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("resolve checkpoint db: %w", err)
			}
			path = filepath.Join(cacheDir, "uilens", "uilens.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint db dir: %w", err)
		}
		return checkpoint.NewSQLiteStore(path)

	default:
		return nil, fmt.Errorf("unknown store backend %q (want fs or sqlite)", backend)
	}
}

func (c *commandContext) apiKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if key := cfg.Section("llm").String("api_key", ""); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key: set GEMINI_API_KEY or llm.api_key in the config file")
}

func (c *commandContext) llmClient() (llm.Client, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}
	cfg, _ := c.ensureConfig()
	var opts []llm.GeminiOption
	if model := cfg.Section("llm").String("model", ""); model != "" {
		opts = append(opts, llm.WithGeminiModel(model))
	}
	return llm.NewGemini(key, opts...), nil
}

func (c *commandContext) engine() *compare.Engine {
	cfg, _ := c.ensureConfig()
	cmp := cfg.Section("compare")
	return compare.NewEngine(compare.Options{
		DiffThreshold: cmp.Int("diff_threshold", 0),
		Buckets:       cmp.Int("buckets", 0),
		SSIMWeight:    cmp.Float("ssim_weight", 0),
		ColorWeight:   cmp.Float("color_weight", 0),
		PassThreshold: cmp.Float("pass_threshold", 0),
		GenerateDiff:  cmp.Bool("generate_diff", false),
	})
}

func (c *commandContext) captureRequest() capture.Request {
	cfg, _ := c.ensureConfig()
	capCfg := cfg.Section("capture")
	req := capture.Request{
		ViewportWidth:  capCfg.Int("viewport_width", 0),
		ViewportHeight: capCfg.Int("viewport_height", 0),
		Timeout:        capCfg.Duration("timeout", 0),
		MaxHeight:      capCfg.Int("max_height", 0),
	}
	if capCfg.String("wait", "") == "networkidle" {
		req.WaitPolicy = capture.WaitNetworkIdle
	}
	return req
}

// buildPipeline wires the store, browser, and capability client into a
// Pipeline. Chrome is only launched for runs that will actually use it;
// a dry run gets the same pipeline with the browser left unstarted.
func (c *commandContext) buildPipeline(dryRun bool) (*uilens.Pipeline, func(), error) {
	logger := c.logger()

	store, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}

	cfg, _ := c.ensureConfig()
	mgr := capture.NewManager(capture.ManagerConfig{
		RemoteURL: cfg.Section("capture").String("remote_url", ""),
		Logger:    logger,
	})

	cleanup := func() {
		mgr.Close()
		store.Close()
	}

	var client llm.Client = llm.NewMockClient("")
	if !dryRun {
		client, err = c.llmClient()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if _, err := mgr.Start(); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	pipeline, err := uilens.New(
		store,
		capture.NewCapturer(mgr, logger),
		vision.NewIdentifier(client, vision.WithLogger(logger)),
		capture.NewStyleExtractor(mgr, 30*time.Second, logger),
		uilens.WithLogger(logger),
		uilens.WithMetrics(observability.NewMetricsRecorder()),
		uilens.WithEngine(c.engine()),
		uilens.WithCaptureRequest(c.captureRequest()),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pipeline, cleanup, nil
}

// withStore opens the checkpoint store, runs fn, and closes it.
func (c *commandContext) withStore(fn func(checkpoint.Store) error) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
