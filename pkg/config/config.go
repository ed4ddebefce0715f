// Package config загружает конфигурацию приложения из YAML.
//
// Конфигурация зеркалит структуру config.yaml и поддерживает
// подстановку ${ENV} переменных (ключи API не хранятся в файле).
// Ошибка конфигурации фатальна на старте — до основного цикла
// невалидный конфиг не доживает.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
type AppConfig struct {
	Models          ModelsConfig    `yaml:"models"`
	Screen          ScreenConfig    `yaml:"screen"`
	Tools           ToolsConfig     `yaml:"tools"`
	ImageProcessing ImageProcConfig `yaml:"image_processing"`
	S3              S3Config        `yaml:"s3"`
	App             AppSpecific     `yaml:"app"`
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	DefaultChat   string              `yaml:"default_chat"`   // Алиас основной модели цикла
	DefaultVision string              `yaml:"default_vision"` // Алиас vision модели для описания скриншотов
	Definitions   map[string]ModelDef `yaml:"definitions"`    // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string  `yaml:"provider"`   // "openai", "openrouter" и другие OpenAI-совместимые
	ModelName   string  `yaml:"model_name"` // Реальное имя в API
	APIKey      string  `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string  `yaml:"base_url"`   // Пустой = дефолтный endpoint OpenAI
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"`    // Секунды, 0 = без HTTP таймаута
	RateLimit   int     `yaml:"rate_limit"` // Запросов в секунду (0 = без лимита)
	Burst       int     `yaml:"burst"`      // Burst для rate limiter
}

// ScreenConfig — размеры виртуального экрана, которым управляет агент.
//
// Значения инжектируются в системный промпт и в инструкцию vision модели.
// Ядро цикла их не интерпретирует — это внешние константы окружения.
type ScreenConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Display string `yaml:"display"` // X display, например ":1". Пустой = $DISPLAY
}

// ToolsConfig — настройки инструментов.
type ToolsConfig struct {
	Version       string `yaml:"version"`        // Версия набора инструментов
	MoveCmd       string `yaml:"move_cmd"`       // Утилита эмуляции мыши (default: xdotool)
	ScreenshotCmd string `yaml:"screenshot_cmd"` // Утилита снятия скриншотов (default: scrot)
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ToolsConfig) GetDefaults() ToolsConfig {
	result := *c

	if result.Version == "" {
		result.Version = "computer_use_20250124"
	}
	if result.MoveCmd == "" {
		result.MoveCmd = "xdotool"
	}
	if result.ScreenshotCmd == "" {
		result.ScreenshotCmd = "scrot"
	}

	return result
}

// ImageProcConfig — настройки обработки скриншотов перед vision вызовом.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// S3Config — настройки архива скриншотов в объектном хранилище.
//
// Опциональный компонент: при Enabled=false скриншоты живут только
// в памяти одной итерации цикла.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`     // Префикс ключей, например "screenshots/"
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug              bool   `yaml:"debug"`
	LogsDir            string `yaml:"logs_dir"`
	SystemPromptSuffix string `yaml:"system_prompt_suffix"`
	KeepRecentImages   int    `yaml:"keep_recent_images"` // 0 = не фильтровать скриншоты из контекста
	MaxIterations      int    `yaml:"max_iterations"`     // 0 = без лимита итераций цикла
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Подставляем переменные окружения.
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML в структуру
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	// 5. Валидируем критические настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if len(c.Models.Definitions) == 0 {
		return fmt.Errorf("models.definitions is empty")
	}
	if c.Models.DefaultChat == "" {
		return fmt.Errorf("models.default_chat is required")
	}
	if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
		return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
	}
	if c.Models.DefaultVision != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultVision]; !ok {
			return fmt.Errorf("default_vision model '%s' is not defined in definitions", c.Models.DefaultVision)
		}
	}
	for name, def := range c.Models.Definitions {
		if def.APIKey == "" {
			return fmt.Errorf("model '%s': api_key is empty (check ENV substitution)", name)
		}
		if def.ModelName == "" {
			return fmt.Errorf("model '%s': model_name is required", name)
		}
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen.width and screen.height must be positive, got %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint is required when s3.enabled")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3.enabled")
		}
	}
	return nil
}

// Helper методы для удобства доступа (Syntactic sugar)

// GetChatModel возвращает конфигурацию chat модели по умолчанию или по имени.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// GetVisionModel возвращает конфигурацию vision модели по умолчанию или по имени.
func (c *AppConfig) GetVisionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultVision
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}
