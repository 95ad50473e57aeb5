package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// New создает slog.Logger: цветной вывод для разработки, JSON для release.
func New(mode string, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if mode == "release" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(NewPrettyHandler(out, slog.LevelDebug))
}

// Setup устанавливает логгер по умолчанию. Вызовы log.Printf тоже проходят через него.
func Setup(mode string) *slog.Logger {
	l := New(mode, os.Stdout)
	slog.SetDefault(l)
	return l
}

// PrettyHandler печатает записи в одну строку с подсветкой уровня
type PrettyHandler struct {
	mu    *sync.Mutex
	l     *log.Logger
	level slog.Level
	attrs []slog.Attr
	group string
}

func NewPrettyHandler(out io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{
		mu:    &sync.Mutex{},
		l:     log.New(out, "", 0),
		level: level,
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.HiBlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	var sb strings.Builder
	writeAttr := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		sb.WriteString(color.GreenString(key))
		sb.WriteString("=")
		sb.WriteString(fmt.Sprint(a.Value.Any()))
		sb.WriteString(" ")
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.l.Println(
		r.Time.Format("15:04:05.000"),
		level,
		r.Message,
		strings.TrimSpace(sb.String()),
	)
	return nil
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}
