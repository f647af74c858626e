package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pages"
)

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func TestBoundary_PanicShowsFallbackUntilReset(t *testing.T) {
	b := NewBoundary(observability.Discard())
	boom := templ.ComponentFunc(func(context.Context, io.Writer) error {
		panic("nil chart data")
	})

	var buf bytes.Buffer
	require.NoError(t, b.Render(context.Background(), &buf, boom))
	assert.Contains(t, buf.String(), "Something went wrong")
	assert.True(t, b.Failed())
	assert.ErrorContains(t, b.Err(), "nil chart data")

	buf.Reset()
	require.NoError(t, b.Render(context.Background(), &buf, text("ok")))
	assert.Contains(t, buf.String(), "Something went wrong", "stays failed until reset")

	b.Reset()
	buf.Reset()
	require.NoError(t, b.Wrap(text("ok")).Render(context.Background(), &buf))
	assert.Equal(t, "ok", buf.String())
	assert.False(t, b.Failed())
}

func TestBoundary_ErrorDiscardsPartialOutput(t *testing.T) {
	b := NewBoundary(observability.Discard())
	partial := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, "<table><tr>")
		return errors.New("template: missing field")
	})

	html, failed, err := b.Patch(context.Background(), partial)
	require.NoError(t, err)
	assert.True(t, failed)
	assert.NotContains(t, html, "<table>")
	assert.Contains(t, html, `id="boundary-fallback"`)
}

func TestBoundary_PatchPassesThrough(t *testing.T) {
	b := NewBoundary(observability.Discard())

	html, failed, err := b.Patch(context.Background(), Drawer(pages.DrawerView{}))
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, `<div id="drawer"></div>`, html)
}
