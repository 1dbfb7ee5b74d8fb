package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct {
	// TimestampFormat overrides the default RFC3339Nano timestamps.
	TimestampFormat string
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = time.RFC3339Nano
	}
	obj := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		obj[k] = v
	}
	obj["ts"] = entry.Timestamp.Format(tsFormat)
	obj["level"] = entry.Level.String()
	obj["msg"] = entry.Message
	if entry.Error != nil {
		obj["error"] = entry.Error.Error()
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("log: marshal entry: %w", err)
	}
	return append(b, '\n'), nil
}

// TextFormatter renders entries as "ts LEVEL msg key=value ..." lines.
type TextFormatter struct {
	// TimestampFormat overrides the default timestamp layout.
	TimestampFormat string
	// DisableTimestamp drops the timestamp column (useful in tests).
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = "2006-01-02T15:04:05.000Z07:00"
	}

	var buf bytes.Buffer
	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(tsFormat))
		buf.WriteByte(' ')
	}
	buf.WriteString(entry.Level.String())
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteByte(' ')
			buf.WriteString(k)
			buf.WriteByte('=')
			fmt.Fprintf(&buf, "%v", entry.Fields[k])
		}
	}
	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%v", entry.Error)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
