package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders records as a one-line header (timestamp, level,
// component, task subject, message) followed by indented bullet fields.
// INFO and above get curated fields; DEBUG dumps everything raw.
type prettyHandler struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool

	// last rendered field values per summary key, so repeated progress
	// lines for the same download only show what changed
	infoCache map[string]map[string]string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{
		writer:    w,
		level:     lvl,
		addSource: addSource,
		infoCache: make(map[string]map[string]string),
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// header captures the attrs promoted out of the field list into the
// rendered header line.
type header struct {
	component string
	gid       string
	backend   string
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var hdr header
	fields := make([]kv, 0, len(kvs))
	for _, pair := range kvs {
		switch pair.key {
		case FieldComponent:
			if hdr.component == "" {
				hdr.component = attrString(pair.value)
			}
			continue
		case FieldGID:
			if hdr.gid == "" {
				hdr.gid = attrString(pair.value)
			}
		case FieldBackend:
			if hdr.backend == "" {
				hdr.backend = attrString(pair.value)
			}
		}
		fields = append(fields, pair)
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(fields)*32)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeHeader(&buf, ts, record.Level, hdr, message, record.Source())
	if record.Level < slog.LevelInfo {
		// debug view: every flattened attr, including gid/backend
		writeRawFields(&buf, kvs)
	} else {
		h.writeInfoFields(&buf, record.Level, hdr, fields)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, hdr header, message string, src *slog.Source) {
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if hdr.component != "" {
		buf.WriteString(" [")
		buf.WriteString(hdr.component)
		buf.WriteByte(']')
	}
	if subject := FormatSubject(hdr.gid, hdr.backend); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	if message != "" {
		buf.WriteString(" – ")
		buf.WriteString(message)
	}
	if h.addSource && src != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(src.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(src.Line))
		buf.WriteByte(']')
	}
	buf.WriteByte('\n')
}

func (h *prettyHandler) writeInfoFields(buf *bytes.Buffer, level slog.Level, hdr header, attrs []kv) {
	fields, hidden := selectInfoFields(attrs, 0, false)
	fields = h.dropUnchanged(infoSummaryKey(hdr.component, hdr.gid, attrs), fields, level)
	for _, field := range fields {
		buf.WriteString("    - ")
		buf.WriteString(field.label)
		buf.WriteString(": ")
		buf.WriteString(field.value)
		buf.WriteByte('\n')
	}
	if hidden > 0 {
		buf.WriteString("    + ")
		buf.WriteString(strconv.Itoa(hidden))
		if hidden == 1 {
			buf.WriteString(" more field hidden\n")
		} else {
			buf.WriteString(" more fields hidden\n")
		}
	}
}

func writeRawFields(buf *bytes.Buffer, attrs []kv) {
	for _, pair := range attrs {
		if pair.key == "" {
			continue
		}
		buf.WriteString("    ")
		buf.WriteString(pair.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(pair.value))
		buf.WriteByte('\n')
	}
}

// dropUnchanged filters fields whose value matches what was last shown
// for the same summary key. Warnings and errors always show everything
// but still refresh the cache.
func (h *prettyHandler) dropUnchanged(key string, fields []infoField, level slog.Level) []infoField {
	if key == "" || len(fields) == 0 {
		return fields
	}
	cache, ok := h.infoCache[key]
	if !ok {
		cache = make(map[string]string)
		h.infoCache[key] = cache
	}
	if level > slog.LevelInfo {
		for _, field := range fields {
			cache[field.label] = field.value
		}
		return fields
	}
	kept := fields[:0]
	for _, field := range fields {
		if prev, seen := cache[field.label]; seen && prev == field.value {
			continue
		}
		cache[field.label] = field.value
		kept = append(kept, field)
	}
	return kept
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		infoCache: h.infoCache,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps one entry per key, last value winning, first
// position preserved.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := attrs[:0]
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append(make([]string, 0, len(prefix)+1), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		if key == "" {
			key = strings.Join(prefix, ".")
		} else {
			key = strings.Join(append(append([]string(nil), prefix...), key), ".")
		}
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
