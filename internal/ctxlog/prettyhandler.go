// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ErrIoWrite is returned when an error occurs while writing to the output.
var ErrIoWrite = errors.New("error when writing to output")

// TimeFormat is the format used for timestamps in log messages.
const TimeFormat = "[15:04:05.000]"

var (
	debugColor = color.New(color.FgMagenta)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	attrColor  = color.New(color.Faint)
)

// PrettyHandler is a slog handler that formats records for terminals: a short
// timestamp, a colored level tag, the message, then faint key=value attrs.
type PrettyHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	mu     *sync.Mutex
	colour bool
	attrs  []slog.Attr
	groups []string
}

// Option mutates a PrettyHandler during construction.
type Option func(*PrettyHandler)

// WithDestinationWriter sets the output writer for the handler.
func WithDestinationWriter(w io.Writer) Option {
	return func(h *PrettyHandler) {
		h.writer = w
	}
}

// WithColor enables colored output.
func WithColor() Option {
	return func(h *PrettyHandler) {
		h.colour = true
	}
}

// NewPretty creates a new PrettyHandler with the supplied options.
func NewPretty(opts *slog.HandlerOptions, options ...Option) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	h := &PrettyHandler{
		opts: opts,
		mu:   &sync.Mutex{},
	}

	for _, o := range options {
		o(h)
	}

	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}

	return level >= minLevel
}

// Handle implements slog.Handler.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(r.Time.Format(TimeFormat))
	sb.WriteByte(' ')
	sb.WriteString(h.levelTag(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	attrs := make(map[string]string, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		h.collectAttr(attrs, a)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(attrs, a)
		return true
	})

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteByte(' ')
		kv := k + "=" + attrs[k]

		if h.colour {
			kv = attrColor.Sprint(kv)
		}

		sb.WriteString(kv)
	}

	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.writer, sb.String()); err != nil {
		return errors.Join(ErrIoWrite, err)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &nh
}

// WithGroup implements slog.Handler.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.groups = append(append([]string{}, h.groups...), name)

	return &nh
}

func (h *PrettyHandler) collectAttr(into map[string]string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	into[key] = fmt.Sprintf("%v", a.Value.Resolve().Any())
}

func (h *PrettyHandler) levelTag(level slog.Level) string {
	tag := level.String() + ":"

	if !h.colour {
		return tag
	}

	switch {
	case level >= slog.LevelError:
		return errorColor.Sprint(tag)
	case level >= slog.LevelWarn:
		return warnColor.Sprint(tag)
	case level >= slog.LevelInfo:
		return infoColor.Sprint(tag)
	default:
		return debugColor.Sprint(tag)
	}
}
