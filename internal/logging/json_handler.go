package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// newJSONHandler emits one object per line with a UTC "ts" field, lower-case
// levels and a short file:line source. Log tailing keys on item_id.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: rewriteJSONAttr,
	})
}

func rewriteJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() != slog.KindTime {
			return slog.Attr{Key: "ts", Value: attr.Value}
		}
		return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.LevelKey:
		return slog.String(attr.Key, strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		src, ok := attr.Value.Any().(*slog.Source)
		if !ok || src == nil {
			return attr
		}
		return slog.String(attr.Key, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
	}
	return attr
}
