// Package components holds small reusable HTML fragments.
package components

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Writer accumulates the first write error so fragments can be emitted
// without checking every call.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup
func (pw *Writer) Raw(s string) {
	if pw.err != nil {
		return
	}
	_, pw.err = io.WriteString(pw.w, s)
}

// Rawf writes trusted markup; args are escaped
func (pw *Writer) Rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = templ.EscapeString(fmt.Sprint(a))
	}
	pw.Raw(fmt.Sprintf(format, escaped...))
}

// Text writes escaped text
func (pw *Writer) Text(s string) {
	pw.Raw(templ.EscapeString(s))
}

// Component renders c inline
func (pw *Writer) Component(ctx context.Context, c templ.Component) {
	if pw.err != nil {
		return
	}
	pw.err = c.Render(ctx, pw.w)
}

// Err returns the first write error
func (pw *Writer) Err() error {
	return pw.err
}

// ErrorState renders an inline error message
func ErrorState(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := NewWriter(w)
		pw.Rawf(`<div class="error-state" role="alert">%s</div>`, message)
		return pw.Err()
	})
}

// Notice renders an informational banner
func Notice(kind, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := NewWriter(w)
		pw.Rawf(`<div class="notice notice-%s">%s</div>`, kind, message)
		return pw.Err()
	})
}
