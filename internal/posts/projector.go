// Package posts projects scanned content nodes into typed posts: it
// validates frontmatter, renders the body and computes the excerpt and
// content digest.
package posts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/identity"
	"github.com/goliatone/go-folio/internal/logging"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/pkg/interfaces"
)

const stage = "project"

var (
	// ErrParserRequired is returned when no markdown parser is configured.
	ErrParserRequired = errors.New("posts: markdown parser is required")
	// ErrSlugMissing is returned when a node reaches projection without a slug.
	ErrSlugMissing = errors.New("posts: node has no derived slug")
)

// DefaultSource is the source instance whose nodes become posts.
const DefaultSource = "posts"

// Config controls projection.
type Config struct {
	Source      string
	PruneLength int
	Workers     int
}

// Projector turns content nodes into posts.
type Projector struct {
	source      string
	pruneLength int
	workers     int
	parser      interfaces.MarkdownParser
	schema      *jsonschema.Schema
	logger      interfaces.Logger
}

// NewProjector returns a projector using parser for body rendering.
func NewProjector(cfg Config, parser interfaces.MarkdownParser, logger interfaces.Logger) (*Projector, error) {
	if parser == nil {
		return nil, ErrParserRequired
	}
	schema, err := compileFrontMatterSchema()
	if err != nil {
		return nil, fmt.Errorf("posts: compile frontmatter schema: %w", err)
	}

	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = DefaultSource
	}
	pruneLength := cfg.PruneLength
	if pruneLength <= 0 {
		pruneLength = markdown.DefaultPruneLength
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NoOp()
	}

	return &Projector{
		source:      source,
		pruneLength: pruneLength,
		workers:     workers,
		parser:      parser,
		schema:      schema,
		logger:      logger,
	}, nil
}

// Source returns the source instance name the projector accepts.
func (p *Projector) Source() string {
	return p.source
}

// Accepts reports whether node belongs to the post source.
func (p *Projector) Accepts(node *content.ContentNode) bool {
	return node != nil && node.SourceInstanceName == p.source
}

// Result is the outcome of projecting a set of nodes.
type Result struct {
	Posts  []*content.Post
	Issues []diagnostics.Issue
}

// ProjectAll projects every accepted node. Nodes with invalid frontmatter
// are excluded and reported. A render failure aborts the whole projection.
// Posts are returned in path order; callers sort them for display.
func (p *Projector) ProjectAll(ctx context.Context, nodes []*content.ContentNode, slugs map[uuid.UUID]string) (*Result, error) {
	accepted := make([]*content.ContentNode, 0, len(nodes))
	for _, node := range nodes {
		if p.Accepts(node) {
			accepted = append(accepted, node)
		}
	}

	type outcome struct {
		post   *content.Post
		issues []diagnostics.Issue
	}
	outcomes := make([]outcome, len(accepted))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for i, node := range accepted {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			slug, ok := slugs[node.ID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrSlugMissing, node.RelativePath)
			}
			post, issues, err := p.Project(node, slug)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{post: post, issues: issues}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Posts: make([]*content.Post, 0, len(accepted))}
	for _, o := range outcomes {
		result.Issues = append(result.Issues, o.issues...)
		if o.post != nil {
			result.Posts = append(result.Posts, o.post)
		}
	}

	p.logger.Info("posts.project.completed",
		"nodes", len(accepted),
		"posts", len(result.Posts),
		"issues", len(result.Issues),
	)
	return result, nil
}

// Project builds the post for a single node. A nil post with issues means
// the node was excluded. A non-nil error is fatal for the build.
func (p *Projector) Project(node *content.ContentNode, slug string) (*content.Post, []diagnostics.Issue, error) {
	display := node.SourceInstanceName + "/" + node.RelativePath
	logger := logging.WithSourceContext(p.logger, display, node.SourceInstanceName, stage)

	var issues []diagnostics.Issue
	warn := func(code, message string, err error) {
		issues = append(issues, diagnostics.Issue{
			Severity: diagnostics.SeverityWarning, Stage: stage, Path: display,
			Code: code, Message: message, Err: err,
		})
	}
	degrade := func(code, message string, err error) {
		issues = append(issues, diagnostics.Issue{
			Severity: diagnostics.SeverityDegraded, Stage: stage, Path: display,
			Code: code, Message: message, Err: err,
		})
	}

	meta := node.FrontMatter
	if meta == nil {
		meta = map[string]any{}
	}

	if err := validateFrontMatter(p.schema, meta); err != nil {
		logger.Debug("posts.frontmatter.invalid", "error", err)
		warn(diagnostics.CodeFrontMatterInvalid, "required frontmatter is missing or malformed, post excluded", err)
		return nil, issues, nil
	}

	date, err := parseDate(meta["date"])
	if err != nil {
		warn(diagnostics.CodeFrontMatterInvalid, "frontmatter date could not be parsed, post excluded", err)
		return nil, issues, nil
	}

	tags, err := stringList(meta["tags"])
	if err != nil {
		degrade(diagnostics.CodeFieldIgnored, "tags ignored", err)
	}
	keywords, err := stringList(meta["keywords"])
	if err != nil {
		degrade(diagnostics.CodeFieldIgnored, "keywords ignored", err)
	}
	description, _ := meta["description"].(string)

	body, err := p.parser.Parse(node.RawBody)
	if err != nil {
		return nil, nil, diagnostics.RenderFailed(display, err)
	}

	plain := markdown.PlainText(node.RawBody)
	post := &content.Post{
		ID:                identity.PostUUID(node.ID),
		ParentID:          node.ID,
		Title:             strings.TrimSpace(meta["title"].(string)),
		Date:              date,
		Tags:              tags,
		Keywords:          keywords,
		Slug:              slug,
		Description:       strings.TrimSpace(description),
		Excerpt:           markdown.Excerpt(plain, p.pruneLength),
		Body:              string(body),
		SourceChecksum:    node.Checksum,
		SourcePath:        display,
		RelativeDirectory: node.RelativeDirectory,
		PlainText:         plain,
	}
	post.ContentDigest = Digest(post)

	return post, issues, nil
}

type digestFields struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
	Excerpt     string   `json:"excerpt"`
}

// Digest hashes the canonical JSON encoding of the post's derived fields.
// The rendered body is not part of the digest.
func Digest(post *content.Post) string {
	encoded, _ := json.Marshal(digestFields{
		ID:          post.ID.String(),
		Title:       post.Title,
		Slug:        post.Slug,
		Date:        post.Date.UTC().Format(time.RFC3339),
		Tags:        nonNil(post.Tags),
		Keywords:    nonNil(post.Keywords),
		Description: post.Description,
		Excerpt:     post.Excerpt,
	})
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
