package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	folio "github.com/goliatone/go-folio"
)

const defaultConfigFile = "folio.yaml"

// CLI is the root command. Global flags apply to every subcommand.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path (defaults to folio.yaml when present)" type:"path"`
	EnvFile string `name:"env-file" help:"Dotenv file with FOLIO_* overrides" default:".env" type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build BuildCmd `cmd:"" default:"1" help:"Build the site into the output directory"`
	Diff  DiffCmd  `cmd:"" help:"Render without writing and list posts changed since the last build"`
	Clean CleanCmd `cmd:"" help:"Remove the output directory and the incremental cache"`
	Watch WatchCmd `cmd:"" help:"Build, then rebuild whenever content, assets or templates change"`
}

func (c *CLI) loadConfig() (folio.Config, error) {
	path := c.Config
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return folio.Config{}, err
		}
	}
	cfg, err := folio.LoadConfig(folio.LoadOptions{Path: path, EnvFile: c.EnvFile})
	if err != nil {
		return folio.Config{}, err
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func (c *CLI) module(ctx context.Context, apply func(*folio.Config)) (*folio.Module, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(&cfg)
	}
	return folio.New(ctx, cfg)
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output      string `short:"o" help:"Override the output directory" type:"path"`
	Incremental bool   `short:"i" help:"Reuse pages of unchanged posts from the previous build"`
	Force       bool   `short:"f" help:"Render every page even when incremental reuse is possible"`
	DryRun      bool   `name:"dry-run" help:"Render everything but write nothing"`
}

func (b *BuildCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	module, err := root.module(ctx, func(cfg *folio.Config) {
		if b.Output != "" {
			cfg.Generator.OutputDir = b.Output
		}
		if b.Incremental {
			cfg.Generator.Incremental = true
		}
	})
	if err != nil {
		return err
	}
	defer module.Close()

	result, err := module.Build(ctx, folio.BuildOptions{Force: b.Force, DryRun: b.DryRun})
	if result != nil {
		printIssues(out, result.Issues)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	printBuildSummary(out, result)
	return nil
}

// DiffCmd implements the 'diff' command.
type DiffCmd struct{}

func (DiffCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	module, err := root.module(ctx, nil)
	if err != nil {
		return err
	}
	defer module.Close()

	result, err := module.Diff(ctx)
	if result != nil {
		printIssues(out, result.Issues)
	}
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	printChanges(out, result)
	return nil
}

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (CleanCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	module, err := root.module(ctx, nil)
	if err != nil {
		return err
	}
	defer module.Close()

	if err := module.Clean(ctx); err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}
	fmt.Fprintf(out, "cleaned %s\n", module.Container().Config.Generator.OutputDir)
	return nil
}

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before a rebuild (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	module, err := root.module(ctx, nil)
	if err != nil {
		return err
	}
	defer module.Close()

	fmt.Fprintf(out, "watching for changes, output in %s\n", module.Container().Config.Generator.OutputDir)
	return module.Watch(ctx, w.Debounce)
}

func printBuildSummary(out io.Writer, result *folio.BuildResult) {
	if result == nil {
		return
	}
	verb := "built"
	if result.DryRun {
		verb = "rendered (dry run)"
	}
	fmt.Fprintf(out, "%s %d posts: %d pages written, %d reused, %d assets, %d feed items in %s\n",
		verb, len(result.Posts), result.PagesBuilt, result.PagesReused, result.AssetsBuilt,
		result.FeedItems, result.Duration.Round(time.Millisecond))
	if !result.DryRun {
		fmt.Fprintf(out, "output: %s\n", result.OutputDir)
	}
}

func printChanges(out io.Writer, result *folio.BuildResult) {
	if result == nil {
		return
	}
	slugs := make(map[string]string, len(result.Posts))
	for _, post := range result.Posts {
		slugs[post.ID.String()] = post.Slug
	}
	label := func(id string) string {
		if slug, ok := slugs[id]; ok {
			return slug
		}
		return id
	}

	changes := result.Changes
	for _, group := range []struct {
		mark string
		ids  []string
	}{
		{"+", changes.Added},
		{"~", changes.Changed},
		{"-", changes.Removed},
	} {
		for _, id := range group.ids {
			fmt.Fprintf(out, "%s %s\n", group.mark, label(id))
		}
	}
	fmt.Fprintf(out, "%d added, %d changed, %d removed, %d unchanged\n",
		len(changes.Added), len(changes.Changed), len(changes.Removed), len(changes.Unchanged))
}

func printIssues(out io.Writer, issues []folio.Issue) {
	for _, issue := range issues {
		line := fmt.Sprintf("%s [%s] %s: %s", issue.Severity, issue.Code, issue.Path, issue.Message)
		fmt.Fprintln(out, strings.TrimSpace(line))
	}
}
