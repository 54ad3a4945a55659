// Command ragsearch runs one retrieval against the configured catalog and
// prints the tool payload to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	ragmovie "github.com/himanshuraimau/rag-movie-agent"
	"github.com/himanshuraimau/rag-movie-agent/internal/config"
	logpkg "github.com/himanshuraimau/rag-movie-agent/internal/logger"
)

var (
	query       = flag.String("q", "Find me similar shows to How I Met Your Mother?", "Search query")
	filterBy    = flag.String("filter-by", "", "Metadata field to filter on")
	filterValue = flag.String("filter-value", "", "Exact value the filter field must have")
	toolName    = flag.String("tool", "", "Tool to run (default: first configured tool)")
	envName     = flag.String("env", "", "Config environment (default: $ENV or local)")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := *envName
	if env == "" {
		env = config.GetEnv()
	}
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *toolName != "" {
		cfg.Tools, err = selectTool(cfg.Tools, *toolName)
		if err != nil {
			return err
		}
	} else {
		cfg.Tools = cfg.Tools[:1]
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tools, err := ragmovie.FromConfig(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("open tool: %w", err)
	}
	tool := tools[0]
	defer tool.Close()

	header := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", header("tool:"), tool.Name())
	fmt.Fprintf(os.Stderr, "%s %s\n", header("query:"), *query)
	if *filterBy != "" && *filterValue != "" {
		fmt.Fprintf(os.Stderr, "%s %s = %s\n", header("filter:"), *filterBy, *filterValue)
	}

	out, err := tool.Run(ctx, *query, *filterBy, *filterValue)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	fmt.Println(out)
	return nil
}

func selectTool(tools []config.ToolConfig, name string) ([]config.ToolConfig, error) {
	for _, t := range tools {
		if t.Name == name {
			return []config.ToolConfig{t}, nil
		}
	}
	return nil, fmt.Errorf("tool %q is not configured", name)
}
