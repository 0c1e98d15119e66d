package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RenderedPage records the outcome for one page of a build.
type RenderedPage struct {
	PostID   uuid.UUID
	Route    string
	Output   string
	Template string
	// HTML is empty for reused pages.
	HTML     string
	Checksum string
	Reused   bool
	Duration time.Duration
}

type renderOutcome struct {
	page RenderedPage
	err  error
}

// renderPages renders or reuses every planned page over a bounded worker
// pool. The first failure cancels the remaining work.
func (s *service) renderPages(ctx context.Context, writer artifactWriter, pages []plannedPage) ([]RenderedPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		rendered = make([]RenderedPage, len(pages))
		firstErr error
	)
	collect := func(index int, outcome renderOutcome) {
		mu.Lock()
		defer mu.Unlock()
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
				cancel()
			}
			return
		}
		rendered[index] = outcome.page
	}

	jobs := make(chan int)
	workers := s.effectiveWorkerCount(len(pages))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				select {
				case <-ctx.Done():
					collect(index, renderOutcome{err: ctx.Err()})
				default:
					collect(index, s.renderPage(ctx, writer, pages[index]))
				}
			}
		}()
	}

dispatch:
	for index := range pages {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- index:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rendered, nil
}

func (s *service) renderPage(ctx context.Context, writer artifactWriter, planned plannedPage) renderOutcome {
	page := planned.Page
	outcome := renderOutcome{page: RenderedPage{
		PostID:   page.PostID,
		Route:    page.RoutePath,
		Output:   planned.Output,
		Template: page.TemplateRef,
	}}

	if planned.Reusable {
		reused, err := writer.Reuse(ctx, planned.Output)
		if err != nil {
			outcome.err = err
			return outcome
		}
		if reused {
			outcome.page.Reused = true
			s.logger.Debug("generator.page.reused", "route", page.RoutePath)
			return outcome
		}
	}

	start := time.Now()
	html, err := s.deps.Renderer.RenderTemplate(page.TemplateRef, page.Context())
	outcome.page.Duration = time.Since(start)
	if err != nil {
		outcome.err = fmt.Errorf("generator: render template %q for %s: %w", page.TemplateRef, page.RoutePath, err)
		return outcome
	}

	if err := writer.WriteFile(ctx, writeFileRequest{
		Path:        planned.Output,
		Content:     strings.NewReader(html),
		Category:    categoryPage,
		ContentType: "text/html; charset=utf-8",
	}); err != nil {
		outcome.err = err
		return outcome
	}

	outcome.page.HTML = html
	outcome.page.Checksum = computeHashFromString(html)
	s.logger.Debug("generator.page.rendered",
		"route", page.RoutePath,
		"template", page.TemplateRef,
		"duration", outcome.page.Duration,
	)
	return outcome
}

func computeHashFromString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
