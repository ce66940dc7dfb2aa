package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
)

var reCodeFence = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_-]*\\s*\n?(.*?)\\s*```\\s*$")

// ExtractJSON pulls the JSON document out of a model reply: code fences are stripped and
// any prose before the first '{' / '[' or after its matching close is dropped.
func ExtractJSON(reply string) []byte {
	s := strings.TrimSpace(reply)
	if m := reCodeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []byte(s)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return []byte(s[start:])
	}
	return []byte(s[start : end+1])
}

// NormalizeAndSanitizeJSON trims string values and drops null, empty and unknown top-level keys
// so a structurally sound reply can still pass an additionalProperties=false schema.
func NormalizeAndSanitizeJSON(raw []byte, allowed []string, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	var dropped []string
	for k, v := range maps.Clone(m) {
		if _, ok := allowedSet[k]; len(allowedSet) > 0 && !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.structured.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
