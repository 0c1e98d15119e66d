package diagnostics

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrSlugCollision marks two content nodes that map to the same slug.
	ErrSlugCollision = errors.New("slug collision")
	// ErrRouteCollision marks two build artifacts that map to the same output file.
	ErrRouteCollision = errors.New("route collision")
	// ErrRenderFailed marks a markup render failure.
	ErrRenderFailed = errors.New("markup render failed")
	// ErrOutputWrite marks a failure writing or committing build output.
	ErrOutputWrite = errors.New("output write failed")
)

// SlugCollision builds the fatal error for two paths sharing slug.
func SlugCollision(slug, first, second string) error {
	return goerrors.Wrap(
		fmt.Errorf("%w: %q claimed by %s and %s", ErrSlugCollision, slug, first, second),
		goerrors.CategoryConflict,
		fmt.Sprintf("slug %s is derived from both %s and %s", slug, first, second),
	).WithTextCode(CodeSlugCollision)
}

// RouteCollision builds the fatal error for two artifacts sharing output.
func RouteCollision(output, first, second string) error {
	return goerrors.Wrap(
		fmt.Errorf("%w: %s claimed by %s and %s", ErrRouteCollision, output, first, second),
		goerrors.CategoryConflict,
		fmt.Sprintf("output %s is produced by both %s and %s", output, first, second),
	).WithTextCode(CodeRouteCollision)
}

// RenderFailed builds the fatal error for a body that could not be rendered.
func RenderFailed(path string, err error) error {
	return goerrors.Wrap(
		fmt.Errorf("%w: %s: %w", ErrRenderFailed, path, err),
		goerrors.CategoryInternal,
		"render markup for "+path,
	).WithTextCode(CodeRenderFailed)
}

// OutputFailed builds the fatal error for an output write failure.
func OutputFailed(path string, err error) error {
	return goerrors.Wrap(
		fmt.Errorf("%w: %s: %w", ErrOutputWrite, path, err),
		goerrors.CategoryInternal,
		"write build output "+path,
	).WithTextCode(CodeOutputWriteFailed)
}

// IsFatal reports whether err is one of the fatal build errors.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSlugCollision) ||
		errors.Is(err, ErrRouteCollision) ||
		errors.Is(err, ErrRenderFailed) ||
		errors.Is(err, ErrOutputWrite)
}
