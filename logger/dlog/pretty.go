package dlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

type color int

const (
	timeFormat = "[2006-01-02 15:04:05.000]"

	reset = "\033[0m"

	green        color = 32
	cyan         color = 36
	lightGray    color = 37
	lightBlue    color = 94
	lightRed     color = 91
	lightYellow  color = 93
	lightMagenta color = 95
	white        color = 97
)

func colorizer(code color, v string) string {
	return "\033[" + strconv.Itoa(int(code)) + "m" + v + reset
}

// PrettyHandler renders one line per record: time, level, source, message and
// the attributes as indented JSON. Attributes are produced by an inner JSON
// handler writing into a shared buffer.
type PrettyHandler struct {
	inner    slog.Handler
	buf      *bytes.Buffer
	mu       *sync.Mutex
	out      io.Writer
	colorize bool
}

func NewPrettyHandler(out io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	buf := &bytes.Buffer{}
	return &PrettyHandler{
		buf: buf,
		inner: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level:       opts.Level,
			AddSource:   opts.AddSource,
			ReplaceAttr: suppressDefaults(opts.ReplaceAttr),
		}),
		mu:       &sync.Mutex{},
		out:      out,
		colorize: true,
	}
}

func (h *PrettyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{inner: h.inner.WithAttrs(attrs), buf: h.buf, mu: h.mu, out: h.out, colorize: h.colorize}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{inner: h.inner.WithGroup(name), buf: h.buf, mu: h.mu, out: h.out, colorize: h.colorize}
}

func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	paint := func(_ color, v string) string { return v }
	if h.colorize {
		paint = colorizer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	attrs, err := h.computeAttrs(ctx, r)
	if err != nil {
		return err
	}

	var source string
	if src, ok := attrs[slog.SourceKey].(map[string]any); ok {
		file, _ := src["file"].(string)
		line, _ := src["line"].(float64)
		source = file + ":" + strconv.Itoa(int(line))
		delete(attrs, slog.SourceKey)
	}

	out := strings.Builder{}
	out.WriteString(paint(lightGray, r.Time.Format(timeFormat)))
	out.WriteString(" ")
	out.WriteString(paint(levelColor(r.Level), r.Level.String()+":"))
	out.WriteString(" ")
	if source != "" {
		out.WriteString(source)
		out.WriteString(" ")
	}
	out.WriteString(paint(white, r.Message))
	if len(attrs) > 0 {
		encoded, err := json.MarshalIndent(attrs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal attrs: %w", err)
		}
		out.WriteString(" ")
		out.WriteString(paint(green, string(encoded)))
	}
	out.WriteString("\n")

	_, err = io.WriteString(h.out, out.String())
	return err
}

// computeAttrs must be called with h.mu held.
func (h *PrettyHandler) computeAttrs(ctx context.Context, r slog.Record) (map[string]any, error) {
	defer h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return nil, fmt.Errorf("inner handler: %w", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(h.buf.Bytes(), &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal inner handler output: %w", err)
	}
	return attrs, nil
}

func levelColor(level slog.Level) color {
	switch {
	case level <= slog.LevelDebug:
		return lightGray
	case level <= slog.LevelInfo:
		return cyan
	case level < slog.LevelWarn:
		return lightBlue
	case level < slog.LevelError:
		return lightYellow
	case level <= slog.LevelError+1:
		return lightRed
	}
	return lightMagenta
}

func suppressDefaults(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.MessageKey) {
			return slog.Attr{}
		}
		if next == nil {
			return a
		}
		return next(groups, a)
	}
}
