package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/contract-cli/internal/config"
	"github.com/ggonzalez94/contract-cli/internal/model"
)

const (
	// DefaultKeyColWidth fits the short labels of results and previews.
	DefaultKeyColWidth = 12
	// WideKeyColWidth fits execution summaries ("Storage Total Deposit").
	WideKeyColWidth = 22
)

// Render writes env as JSON, or in plain mode as an ERROR line or the bare
// data document.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	if settings.OutputMode == config.OutputJSON {
		return WriteJSON(w, env)
	}
	if env.Error != nil {
		if _, err := fmt.Fprintf(w, "ERROR: %s\n", env.Error.Message); err != nil {
			return err
		}
		if env.Error.Details != nil {
			line, err := toLine(normalizeValue(env.Error.Details))
			if err != nil {
				return err
			}
			return NameValue(w, "Details", line, DefaultKeyColWidth)
		}
		return nil
	}
	return WriteJSON(w, env.Data)
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NameValue prints one "label value" line with the label right-aligned in a
// column of the given width.
func NameValue(w io.Writer, label, value string, width int) error {
	_, err := fmt.Fprintf(w, "%*s %s\n", width, label, value)
	return err
}

// Warning prints a single cautionary line.
func Warning(w io.Writer, message string) error {
	_, err := fmt.Fprintf(w, "%*s %s\n", DefaultKeyColWidth, "Warning", message)
	return err
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(v any) (string, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, t[k]))
		}
		return strings.Join(parts, " "), nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
}
