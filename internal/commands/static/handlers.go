// Package staticcmd exposes the generator operations as go-command handlers
// so the CLI and watch mode drive builds through one execution path.
package staticcmd

import (
	"context"
	"errors"

	"github.com/goliatone/go-folio/internal/commands"
	"github.com/goliatone/go-folio/internal/generator"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

// ErrServiceRequired is returned when a handler has no generator to drive.
var ErrServiceRequired = errors.New("staticcmd: generator service is required")

// BuildSiteHandler executes generator builds.
type BuildSiteHandler struct {
	inner *commands.Handler[BuildSiteCommand]
}

// NewBuildSiteHandler constructs a handler that executes generator builds.
func NewBuildSiteHandler(service generator.Service, logger interfaces.Logger, opts ...commands.HandlerOption[BuildSiteCommand]) *BuildSiteHandler {
	baseLogger := ensureLogger(logger)

	exec := func(ctx context.Context, msg BuildSiteCommand) error {
		if service == nil {
			return ErrServiceRequired
		}
		result, err := service.Build(ctx, generator.BuildOptions{
			Force:  msg.Force,
			DryRun: msg.DryRun,
		})
		invokeCallback(msg.ResultCallback, ResultEnvelope{
			Result:   result,
			Metadata: envelopeMetadata("build", msg.Trigger, err),
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[BuildSiteCommand]{
		commands.WithLogger[BuildSiteCommand](baseLogger),
		commands.WithOperation[BuildSiteCommand]("static.build"),
		commands.WithMessageFields(func(msg BuildSiteCommand) map[string]any {
			fields := map[string]any{}
			if msg.Force {
				fields["force"] = true
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			if msg.Trigger != "" {
				fields["trigger"] = msg.Trigger
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[BuildSiteCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &BuildSiteHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[BuildSiteCommand].
func (h *BuildSiteHandler) Execute(ctx context.Context, msg BuildSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}

// DiffSiteHandler performs dry-run builds and reports digest changes.
type DiffSiteHandler struct {
	inner *commands.Handler[DiffSiteCommand]
}

// NewDiffSiteHandler constructs a handler that executes generator dry-runs.
func NewDiffSiteHandler(service generator.Service, logger interfaces.Logger, opts ...commands.HandlerOption[DiffSiteCommand]) *DiffSiteHandler {
	baseLogger := ensureLogger(logger)

	exec := func(ctx context.Context, msg DiffSiteCommand) error {
		if service == nil {
			return ErrServiceRequired
		}
		result, err := service.Build(ctx, generator.BuildOptions{
			Force:  msg.Force,
			DryRun: true,
		})
		metadata := envelopeMetadata("diff", "", err)
		if result != nil {
			metadata["added"] = len(result.Changes.Added)
			metadata["changed"] = len(result.Changes.Changed)
			metadata["removed"] = len(result.Changes.Removed)
			metadata["unchanged"] = len(result.Changes.Unchanged)
		}
		invokeCallback(msg.ResultCallback, ResultEnvelope{Result: result, Metadata: metadata})
		return err
	}

	handlerOpts := []commands.HandlerOption[DiffSiteCommand]{
		commands.WithLogger[DiffSiteCommand](baseLogger),
		commands.WithOperation[DiffSiteCommand]("static.diff"),
		commands.WithMessageFields(func(msg DiffSiteCommand) map[string]any {
			if msg.Force {
				return map[string]any{"force": true}
			}
			return nil
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[DiffSiteCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &DiffSiteHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[DiffSiteCommand].
func (h *DiffSiteHandler) Execute(ctx context.Context, msg DiffSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CleanSiteHandler clears generator artifacts.
type CleanSiteHandler struct {
	inner *commands.Handler[CleanSiteCommand]
}

// NewCleanSiteHandler constructs a handler that cleans generator output.
func NewCleanSiteHandler(service generator.Service, logger interfaces.Logger, opts ...commands.HandlerOption[CleanSiteCommand]) *CleanSiteHandler {
	baseLogger := ensureLogger(logger)

	exec := func(ctx context.Context, _ CleanSiteCommand) error {
		if service == nil {
			return ErrServiceRequired
		}
		return service.Clean(ctx)
	}

	handlerOpts := []commands.HandlerOption[CleanSiteCommand]{
		commands.WithLogger[CleanSiteCommand](baseLogger),
		commands.WithOperation[CleanSiteCommand]("static.clean"),
		commands.WithTelemetry(commands.DefaultTelemetry[CleanSiteCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &CleanSiteHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[CleanSiteCommand].
func (h *CleanSiteHandler) Execute(ctx context.Context, msg CleanSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}

func envelopeMetadata(operation, trigger string, err error) map[string]any {
	metadata := map[string]any{"operation": operation}
	if trigger != "" {
		metadata["trigger"] = trigger
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	return metadata
}

func ensureLogger(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return logging.NoOp()
	}
	return logger
}

func invokeCallback(cb ResultCallback, envelope ResultEnvelope) {
	if cb == nil {
		return
	}
	cb(envelope)
}
