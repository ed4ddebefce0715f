package app

import (
	"fmt"
	"time"

	"github.com/ovchar/kursor/pkg/chain"
	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/debug"
	"github.com/ovchar/kursor/pkg/events"
	"github.com/ovchar/kursor/pkg/models"
	"github.com/ovchar/kursor/pkg/s3storage"
	"github.com/ovchar/kursor/pkg/tools"
	"github.com/ovchar/kursor/pkg/tools/computer"
	"github.com/ovchar/kursor/pkg/utils"
	"github.com/ovchar/kursor/pkg/vision"
)

// Initialize собирает приложение из конфигурации.
//
// Порядок сборки:
// 1. Логгер
// 2. S3 архив скриншотов (опционально)
// 3. Дисплей и инструмент computer
// 4. Реестры инструментов и моделей
// 5. Vision суммаризатор
// 6. Цикл с emitter и debug recorder
func Initialize(cfg *config.AppConfig) (*AppState, error) {
	if err := utils.InitLogger(); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	appState := NewAppState(cfg)

	// S3 архив опционален: без него скриншоты живут только в итерации
	var s3Client *s3storage.Client
	if cfg.S3.Enabled {
		var err error
		s3Client, err = s3storage.New(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 archive: %w", err)
		}
		appState.S3 = s3Client
		utils.Info("Screenshot archive enabled", "bucket", cfg.S3.Bucket)
	}

	// Инструменты
	toolsCfg := cfg.Tools.GetDefaults()
	if tools.Version(toolsCfg.Version) != tools.Version20250124 {
		return nil, fmt.Errorf("unknown tools version: %s", toolsCfg.Version)
	}
	display := computer.NewX11Display(cfg.Screen, toolsCfg)
	computerTool := computer.New(display, cfg.Screen)
	if s3Client != nil {
		computerTool.SetScreenshotSink(s3Client)
	}

	registry := tools.NewRegistry()
	if err := registry.Register(computerTool); err != nil {
		return nil, fmt.Errorf("failed to register computer tool: %w", err)
	}
	appState.SetToolsRegistry(registry)

	// Модели
	modelRegistry, err := models.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init model registry: %w", err)
	}
	utils.Info("Models registered", "models", modelRegistry.ListNames())

	// Vision суммаризатор работает на своей модели
	var describer chain.Describer
	if _, ok := cfg.GetVisionModel(""); ok {
		provider, _, err := modelRegistry.Get(cfg.Models.DefaultVision)
		if err != nil {
			return nil, fmt.Errorf("failed to get vision provider: %w", err)
		}
		describer = vision.New(provider, cfg.Screen, cfg.ImageProcessing)
	} else {
		utils.Warn("No vision model configured, screenshots will not be described")
	}

	// Цикл
	loop := chain.NewLoop(chain.LoopConfig{
		DefaultModel:     cfg.Models.DefaultChat,
		SystemPrompt:     chain.BuildSystemPrompt(cfg.Screen, cfg.App.SystemPromptSuffix),
		KeepRecentImages: cfg.App.KeepRecentImages,
		ToolTimeout:      30 * time.Second,
	})
	loop.SetModelRegistry(modelRegistry)
	loop.SetRegistry(registry)
	if describer != nil {
		loop.SetDescriber(describer)
	}

	emitter := events.NewChanEmitter(64)
	loop.SetEmitter(emitter)
	appState.Emitter = emitter

	if cfg.App.Debug {
		appState.DebugConfig = &debug.RecorderConfig{
			LogsDir:       cfg.App.LogsDir,
			IncludeArgs:   true,
			MaxResultSize: 4096,
		}
		utils.Info("Debug traces enabled", "logs_dir", cfg.App.LogsDir)
	}

	appState.Loop = loop
	utils.Info("Application initialized",
		"chat_model", cfg.Models.DefaultChat,
		"vision_model", cfg.Models.DefaultVision,
		"screen", fmt.Sprintf("%dx%d", cfg.Screen.Width, cfg.Screen.Height))

	return appState, nil
}
