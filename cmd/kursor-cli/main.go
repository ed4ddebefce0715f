// Kursor-cli — headless запуск одной задачи без TUI.
//
// Использование:
//   ./kursor-cli "открой браузер и найди погоду"
//   ./kursor-cli -config /etc/kursor.yaml -model fast "задача"
//   ./kursor-cli -max-iterations 20 "задача"
//   ./kursor-cli -list-screenshots
//
// config.yaml должен находиться рядом с бинарником или задаваться флагом.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovchar/kursor/internal/app"
	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/s3storage"
	"github.com/ovchar/kursor/pkg/utils"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	var (
		configPath    = flag.String("config", "config.yaml", "Path to config.yaml")
		modelName     = flag.String("model", "", "Override chat model alias")
		maxIterations = flag.Int("max-iterations", 0, "Iteration limit (0 = from config)")
		listShots     = flag.Bool("list-screenshots", false, "List archived screenshots and exit")
		showVersion   = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kursor-cli version %s\n", Version)
		os.Exit(0)
	}

	if *listShots {
		if err := listScreenshots(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: query argument is required")
		fmt.Fprintln(os.Stderr, "Usage: kursor-cli [flags] \"query\"")
		os.Exit(1)
	}
	query := flag.Arg(0)

	if err := run(*configPath, *modelName, *maxIterations, query); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, modelName string, maxIterations int, query string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if maxIterations > 0 {
		cfg.App.MaxIterations = maxIterations
	}

	appState, err := app.Initialize(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer utils.Close()
	defer appState.Emitter.Close()

	if modelName != "" {
		if _, ok := cfg.GetChatModel(modelName); !ok {
			return fmt.Errorf("model '%s' is not defined in config", modelName)
		}
		appState.SetCurrentModel(modelName)
	}

	// Ctrl+C прерывает сессию, зафиксированная история остаётся в трейсе
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// События цикла уходят в stderr по мере выполнения
	go printEvents(appState)

	answer, err := appState.RunQuery(ctx, query)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// listScreenshots печатает содержимое архива скриншотов.
func listScreenshots(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.S3.Enabled {
		return fmt.Errorf("screenshot archive is disabled in config (s3.enabled)")
	}

	client, err := s3storage.New(cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to init s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	objects, err := client.ListScreenshots(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		fmt.Printf("%s  %8.2f KB  %s\n",
			obj.LastModified.Format("2006-01-02 15:04:05"),
			float64(obj.Size)/1024,
			obj.Key)
	}
	fmt.Printf("total: %d\n", len(objects))
	return nil
}

// printEvents печатает ход сессии в stderr, оставляя stdout для ответа.
func printEvents(appState *app.AppState) {
	sub := appState.Emitter.Subscribe()
	for event := range sub.Events() {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", event.Timestamp.Format("15:04:05"), describeEvent(event))
	}
}
