// Package content holds the data model shared by the build pipeline: scanned
// content nodes and the arena that owns them, projected posts, and the
// immutable page descriptors handed to the renderer.
package content
