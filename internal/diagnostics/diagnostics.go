// Package diagnostics collects the issues raised while building a site.
//
// Fatal conditions abort the build and are returned as go-errors errors.
// Warnings exclude a single file from the build. Degraded issues keep the
// file but drop an optional part of it. Warnings and degraded issues are
// gathered in a Report and logged once when the build ends.
package diagnostics

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/goliatone/go-folio/pkg/interfaces"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeverityWarning  Severity = "warning"
	SeverityDegraded Severity = "degraded"
)

// Issue codes.
const (
	CodeFrontMatterUnreadable = "FRONTMATTER_UNREADABLE"
	CodeFrontMatterInvalid    = "FRONTMATTER_INVALID"
	CodeFieldIgnored          = "FRONTMATTER_FIELD_IGNORED"
	CodeCardImageUnresolved   = "CARD_IMAGE_UNRESOLVED"
	CodeSlugCollision         = "SLUG_COLLISION"
	CodeRouteCollision        = "ROUTE_COLLISION"
	CodeRenderFailed          = "MARKUP_RENDER_FAILED"
	CodeOutputWriteFailed     = "OUTPUT_WRITE_FAILED"
)

// Issue is one problem tied to a source file.
type Issue struct {
	Severity Severity `json:"severity"`
	Stage    string   `json:"stage"`
	Path     string   `json:"path"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

func (i Issue) String() string {
	if i.Err != nil {
		return fmt.Sprintf("%s %s %s: %s: %v", i.Severity, i.Code, i.Path, i.Message, i.Err)
	}
	return fmt.Sprintf("%s %s %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

// Report accumulates issues. It is safe for concurrent use.
type Report struct {
	mu     sync.Mutex
	issues []Issue
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add records issue.
func (r *Report) Add(issue Issue) {
	r.mu.Lock()
	r.issues = append(r.issues, issue)
	r.mu.Unlock()
}

// Merge appends every issue from issues.
func (r *Report) Merge(issues []Issue) {
	if len(issues) == 0 {
		return
	}
	r.mu.Lock()
	r.issues = append(r.issues, issues...)
	r.mu.Unlock()
}

// Warn records a warning for path.
func (r *Report) Warn(stage, path, code, message string, err error) {
	r.Add(Issue{Severity: SeverityWarning, Stage: stage, Path: path, Code: code, Message: message, Err: err})
}

// Degrade records a degraded issue for path.
func (r *Report) Degrade(stage, path, code, message string, err error) {
	r.Add(Issue{Severity: SeverityDegraded, Stage: stage, Path: path, Code: code, Message: message, Err: err})
}

// Issues returns every issue ordered by path, stage and code.
func (r *Report) Issues() []Issue {
	r.mu.Lock()
	out := slices.Clone(r.issues)
	r.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Issue) int {
		return cmp.Or(
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Stage, b.Stage),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return out
}

// Count returns the number of issues with severity.
func (r *Report) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, issue := range r.issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Len returns the number of recorded issues.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issues)
}

// Log writes every issue to logger followed by one summary entry.
func (r *Report) Log(logger interfaces.Logger) {
	if logger == nil {
		return
	}
	issues := r.Issues()
	for _, issue := range issues {
		args := []any{
			"severity", string(issue.Severity),
			"stage", issue.Stage,
			"path", issue.Path,
			"code", issue.Code,
		}
		if issue.Err != nil {
			args = append(args, "error", issue.Err)
		}
		logger.Warn("build.issue "+issue.Message, args...)
	}
	logger.Info("build.issues.summary",
		"warnings", r.Count(SeverityWarning),
		"degraded", r.Count(SeverityDegraded),
	)
}
