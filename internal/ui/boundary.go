package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/a-h/templ"
)

// Boundary contains render failures. Once a component fails, the fallback
// is shown in its place until Reset.
type Boundary struct {
	logger *slog.Logger

	mu     sync.Mutex
	failed bool
	err    error
}

func NewBoundary(logger *slog.Logger) *Boundary {
	return &Boundary{logger: logger}
}

// Render writes c to w, or the fallback when c fails now or failed earlier.
// Nothing of a failed render reaches w.
func (b *Boundary) Render(ctx context.Context, w io.Writer, c templ.Component) error {
	if b.Failed() {
		return Fallback().Render(ctx, w)
	}

	var buf bytes.Buffer
	if err := safeRender(ctx, &buf, c); err != nil {
		b.mu.Lock()
		b.failed = true
		b.err = err
		b.mu.Unlock()

		b.logger.ErrorContext(ctx, "component render failed", "error", err)
		return Fallback().Render(ctx, w)
	}

	_, err := buf.WriteTo(w)
	return err
}

// Wrap returns c guarded by the boundary.
func (b *Boundary) Wrap(c templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return b.Render(ctx, w, c)
	})
}

// Patch renders c for an SSE patch. failed reports that the fallback was
// rendered instead, which belongs in #main rather than in c's own element.
func (b *Boundary) Patch(ctx context.Context, c templ.Component) (html string, failed bool, err error) {
	var buf bytes.Buffer
	if err := b.Render(ctx, &buf, c); err != nil {
		return "", b.Failed(), err
	}
	return buf.String(), b.Failed(), nil
}

func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = false
	b.err = nil
}

func (b *Boundary) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

func (b *Boundary) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func safeRender(ctx context.Context, w io.Writer, c templ.Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return c.Render(ctx, w)
}
