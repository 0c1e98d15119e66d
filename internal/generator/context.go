package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-folio/internal/content"
	"github.com/goliatone/go-folio/internal/diagnostics"
	"github.com/goliatone/go-folio/internal/digests"
	"github.com/goliatone/go-folio/internal/markdown"
	"github.com/goliatone/go-folio/internal/seo"
	"github.com/goliatone/go-folio/internal/slugs"
)

const (
	templatePost  = "post.html"
	templateIndex = "index.html"
	templateAbout = "about.html"

	routeIndex = "/"
	routeAbout = "/about/"

	// Date layouts of the post page and the index listing.
	postDateLayout  = "January 02, 2006"
	indexDateLayout = "02 Jan, 2006"
)

type pageKind string

const (
	kindPost  pageKind = "post"
	kindIndex pageKind = "index"
	kindAbout pageKind = "about"
)

// plannedPage is a page scheduled for rendering with its output location.
type plannedPage struct {
	Page         content.Page
	Kind         pageKind
	Output       string
	Source       string
	LastModified time.Time
	// Reusable marks post pages whose digest matches the last build.
	Reusable bool
}

// buildPlan is everything a build decides before it writes a byte.
type buildPlan struct {
	GeneratedAt time.Time
	Posts       []*content.Post
	Pages       []plannedPage
	Records     []digests.Record
	Changes     digests.Changes
	Fingerprint string
}

// plan runs the scan, slug, projection and page building stages.
func (s *service) plan(ctx context.Context, report *diagnostics.Report, opts BuildOptions) (*buildPlan, error) {
	generatedAt := s.now().UTC()

	stageStart := time.Now()
	scanned, err := s.deps.Scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	report.Merge(scanned.Issues)
	s.observe("scan", stageStart)

	stageStart = time.Now()
	nodes := scanned.Arena.Nodes()
	slugMap, err := slugs.DeriveAll(s.acceptedNodes(nodes))
	if err != nil {
		return nil, err
	}
	s.observe("slugs", stageStart)

	stageStart = time.Now()
	projected, err := s.deps.Projector.ProjectAll(ctx, nodes, slugMap)
	if err != nil {
		return nil, err
	}
	report.Merge(projected.Issues)
	posts := projected.Posts
	content.SortPosts(posts)
	s.observe("project", stageStart)

	plan := &buildPlan{
		GeneratedAt: generatedAt,
		Posts:       posts,
		Fingerprint: s.fingerprint(generatedAt),
	}

	lastModified := make(map[uuid.UUID]time.Time, len(nodes))
	for _, node := range nodes {
		lastModified[node.ID] = node.LastModified
	}

	stageStart = time.Now()
	for _, post := range posts {
		card := s.resolveCard(post, report)
		route := joinRoute(s.cfg.PostRoutePrefix, post.Slug)
		page := content.NewPage(route, templatePost, post.ID, s.postContext(post, route, card, generatedAt))
		output := buildOutputPath(route)
		plan.Pages = append(plan.Pages, plannedPage{
			Page:         page,
			Kind:         kindPost,
			Output:       output,
			Source:       post.SourcePath,
			LastModified: lastModified[post.ParentID],
		})
		plan.Records = append(plan.Records, digests.Record{
			PostID:              post.ID.String(),
			Slug:                post.Slug,
			Route:               route,
			Output:              output,
			Digest:              post.ContentDigest,
			SourceChecksum:      post.SourceChecksum,
			RendererFingerprint: combineFingerprint(plan.Fingerprint, card),
			RecordedAt:          generatedAt,
		})
	}

	plan.Pages = append(plan.Pages, plannedPage{
		Page:   content.NewPage(routeIndex, templateIndex, uuid.Nil, s.indexContext(posts, generatedAt)),
		Kind:   kindIndex,
		Output: buildOutputPath(routeIndex),
		Source: "index page",
	})

	about, err := s.aboutContext(report, generatedAt)
	if err != nil {
		return nil, err
	}
	plan.Pages = append(plan.Pages, plannedPage{
		Page:   content.NewPage(routeAbout, templateAbout, uuid.Nil, about),
		Kind:   kindAbout,
		Output: buildOutputPath(routeAbout),
		Source: "about page",
	})
	if err := s.checkOutputs(plan.Pages); err != nil {
		return nil, err
	}
	s.observe("pages", stageStart)

	previous, err := s.deps.Digests.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: load digests: %w", err)
	}
	plan.Changes = digests.Diff(previous, plan.Records)

	if s.cfg.Incremental && !opts.Force {
		unchanged := make(map[string]struct{}, len(plan.Changes.Unchanged))
		for _, id := range plan.Changes.Unchanged {
			unchanged[id] = struct{}{}
		}
		for i := range plan.Pages {
			if plan.Pages[i].Kind != kindPost {
				continue
			}
			if _, ok := unchanged[plan.Pages[i].Page.PostID.String()]; ok {
				plan.Pages[i].Reusable = true
			}
		}
	}
	return plan, nil
}

// acceptedNodes narrows nodes to the ones the projector turns into pages.
// Nodes of other sources never get a route, so their slugs cannot collide.
func (s *service) acceptedNodes(nodes []*content.ContentNode) []*content.ContentNode {
	filter, ok := s.deps.Projector.(nodeFilter)
	if !ok {
		return nodes
	}
	accepted := make([]*content.ContentNode, 0, len(nodes))
	for _, node := range nodes {
		if filter.Accepts(node) {
			accepted = append(accepted, node)
		}
	}
	return accepted
}

// checkOutputs fails when two pages, or a page and a generated document,
// would write the same output file.
func (s *service) checkOutputs(pages []plannedPage) error {
	claimed := map[string]string{
		s.cfg.Feed.Path: "rss feed",
	}
	if s.cfg.Feed.Atom {
		if owner, ok := claimed[s.cfg.Feed.AtomPath]; ok {
			return diagnostics.RouteCollision(s.cfg.Feed.AtomPath, owner, "atom feed")
		}
		claimed[s.cfg.Feed.AtomPath] = "atom feed"
	}
	if s.cfg.GenerateSitemap {
		claimed["sitemap.xml"] = "sitemap"
	}
	if s.cfg.GenerateRobots {
		claimed["robots.txt"] = "robots"
	}

	for _, page := range pages {
		label := page.Source + " " + page.Page.RoutePath
		if owner, ok := claimed[page.Output]; ok {
			return diagnostics.RouteCollision(page.Output, owner, label)
		}
		claimed[page.Output] = label
	}
	return nil
}

func (s *service) siteContext() map[string]any {
	site := s.cfg.Site
	return map[string]any{
		"title":       site.Title,
		"description": site.Description,
		"base_url":    strings.TrimRight(site.BaseURL, "/"),
		"image":       site.Image,
		"twitter":     site.TwitterUsername,
		"language":    s.cfg.Language,
	}
}

func (s *service) baseContext(meta seo.Meta, generatedAt time.Time) map[string]any {
	return map[string]any{
		"site":     s.siteContext(),
		"seo":      meta.Map(),
		"feed_url": seo.AbsoluteURL(s.cfg.Site.BaseURL, s.cfg.Feed.Path),
		"build": map[string]any{
			"generated_at": generatedAt.Format(time.RFC3339),
			"year":         generatedAt.Year(),
		},
	}
}

func (s *service) postContext(post *content.Post, route, card string, generatedAt time.Time) map[string]any {
	meta := seo.Build(s.cfg.Site, seo.Input{
		Title:       post.Title,
		Description: post.Summary(),
		Path:        joinRoute(s.cfg.CanonicalPrefix, post.Slug),
		Image:       card,
		Article:     true,
		Keywords:    post.Keywords,
	})
	ctx := s.baseContext(meta, generatedAt)
	ctx["page"] = map[string]any{
		"id":                post.ID.String(),
		"title":             post.Title,
		"slug":              post.Slug,
		"route":             route,
		"canonical":         s.canonicalURL(post.Slug),
		"date_iso":          post.Date.Format(time.RFC3339),
		"date_display":      post.Date.Format(postDateLayout),
		"tags":              append([]string{}, post.Tags...),
		"keywords":          append([]string{}, post.Keywords...),
		"description":       post.Description,
		"excerpt":           post.Excerpt,
		"body":              post.Body,
		"relativeDirectory": post.RelativeDirectory,
		"card":              card,
		"digest":            post.ContentDigest,
	}
	return ctx
}

func (s *service) indexContext(posts []*content.Post, generatedAt time.Time) map[string]any {
	ctx := s.baseContext(seo.Build(s.cfg.Site, seo.Input{Path: routeIndex}), generatedAt)
	entries := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		entries = append(entries, map[string]any{
			"title":      post.Title,
			"slug":       post.Slug,
			"route":      joinRoute(s.cfg.PostRoutePrefix, post.Slug),
			"date_iso":   post.Date.Format(time.RFC3339),
			"date_short": post.Date.Format(indexDateLayout),
			"excerpt":    post.Excerpt,
			"tags":       append([]string{}, post.Tags...),
		})
	}
	ctx["posts"] = entries
	ctx["page"] = map[string]any{
		"title": s.cfg.Site.Title,
		"route": routeIndex,
	}
	return ctx
}

// aboutContext loads the optional about page markdown. A missing file only
// warns; a body that cannot be rendered fails the build.
func (s *service) aboutContext(report *diagnostics.Report, generatedAt time.Time) (map[string]any, error) {
	title := "About"
	body := ""

	if file := strings.TrimSpace(s.cfg.AboutPath); file != "" {
		raw, err := os.ReadFile(file)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			report.Warn("build", file, diagnostics.CodeFrontMatterUnreadable, "about page source not found, using site description", err)
		case err != nil:
			return nil, fmt.Errorf("generator: read about page: %w", err)
		default:
			meta, source, err := markdown.ParseFrontMatter(raw)
			if err != nil {
				report.Warn("build", file, diagnostics.CodeFrontMatterUnreadable, "about page frontmatter could not be parsed", err)
				source = raw
			}
			if t, ok := meta["title"].(string); ok && strings.TrimSpace(t) != "" {
				title = strings.TrimSpace(t)
			}
			rendered, err := s.markdown.Parse(source)
			if err != nil {
				return nil, diagnostics.RenderFailed(file, err)
			}
			body = string(rendered)
		}
	}

	ctx := s.baseContext(seo.Build(s.cfg.Site, seo.Input{Title: title, Path: routeAbout}), generatedAt)
	ctx["page"] = map[string]any{
		"title": title,
		"route": routeAbout,
		"body":  body,
	}
	return ctx, nil
}

// fingerprint identifies everything outside a post that shapes its page:
// templates, site settings, route layout and the build year in the footer.
func (s *service) fingerprint(generatedAt time.Time) string {
	settings, _ := json.Marshal(struct {
		Site            seo.Site
		Language        string
		PostRoutePrefix string
		CanonicalPrefix string
		FeedPath        string
		BuildYear       int
	}{s.cfg.Site, s.cfg.Language, s.cfg.PostRoutePrefix, s.cfg.CanonicalPrefix, s.cfg.Feed.Path, generatedAt.Year()})

	h := sha256.New()
	h.Write(settings)
	if fp, ok := s.deps.Renderer.(fingerprinter); ok {
		h.Write([]byte(fp.Fingerprint()))
	}
	if fp, ok := s.markdown.(fingerprinter); ok {
		h.Write([]byte(fp.Fingerprint()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func combineFingerprint(base, card string) string {
	sum := sha256.Sum256([]byte(base + "\x00" + card))
	return hex.EncodeToString(sum[:])
}
