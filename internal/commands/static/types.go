package staticcmd

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-folio/internal/generator"
)

const (
	buildSiteMessageType = "folio.static.build"
	diffSiteMessageType  = "folio.static.diff"
	cleanSiteMessageType = "folio.static.clean"
)

// Trigger values identify what started a build.
const (
	TriggerCLI   = "cli"
	TriggerWatch = "watch"
)

// ResultCallback receives build results produced by generator operations. It
// is invoked synchronously, also when the build failed and a partial result
// is available.
type ResultCallback func(ResultEnvelope)

// ResultEnvelope captures the outcome of a static command execution.
type ResultEnvelope struct {
	Result   *generator.BuildResult
	Metadata map[string]any
}

// BuildSiteCommand runs the full pipeline and publishes the site.
type BuildSiteCommand struct {
	Force          bool           `json:"force,omitempty"`
	DryRun         bool           `json:"dry_run,omitempty"`
	Trigger        string         `json:"trigger,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (BuildSiteCommand) Type() string { return buildSiteMessageType }

// Validate implements command.Message.
func (m BuildSiteCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Trigger, validation.In(TriggerCLI, TriggerWatch).
			ErrorObject(validation.NewError("folio.static.build.trigger_invalid", "trigger must be cli or watch"))),
	)
}

// DiffSiteCommand renders the site without writing it and reports which
// posts changed since the last published build.
type DiffSiteCommand struct {
	Force          bool           `json:"force,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (DiffSiteCommand) Type() string { return diffSiteMessageType }

// Validate implements command.Message. Diffs carry no constrained fields.
func (DiffSiteCommand) Validate() error { return nil }

// CleanSiteCommand removes the output directory and the digest snapshot.
type CleanSiteCommand struct{}

// Type implements command.Message.
func (CleanSiteCommand) Type() string { return cleanSiteMessageType }

// Validate implements command.Message.
func (CleanSiteCommand) Validate() error { return nil }
