// Package paper drives the stage-gated dialogue that collects research
// information and turns it into a full paper via the collaboration
// engine.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackKey stores a user turn that could not be parsed into fields.
const FallbackKey = "user supplementary info"

// extractor is the slice of the collaboration engine this package
// needs for the structured-extraction call.
type extractor interface {
	ExtractInformation(ctx context.Context, input, stage string) (string, error)
}

// ExtractInformation pulls structured fields out of a free-text user
// turn using an LLM backend. It is best-effort and never fails: when
// the backend errors or the output is not parseable JSON, the whole
// input is preserved under FallbackKey so no user text is lost.
func ExtractInformation(ctx context.Context, ex extractor, input, stage string) map[string]string {
	fallback := map[string]string{FallbackKey: input}

	raw, err := ex.ExtractInformation(ctx, input, stage)
	if err != nil {
		return fallback
	}

	fields, ok := parseJSONObject(raw)
	if !ok || len(fields) == 0 {
		return fallback
	}
	return fields
}

// parseJSONObject finds the outermost brace-delimited object in raw
// and decodes it, coercing values to strings. Models wrap JSON in
// prose and code fences often enough that a strict decode of the whole
// output would reject most valid answers.
func parseJSONObject(raw string) (map[string]string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil, false
	}

	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			if val != "" {
				out[k] = val
			}
		case float64, bool:
			out[k] = fmt.Sprintf("%v", val)
		case nil:
			// skip
		default:
			blob, err := json.Marshal(val)
			if err == nil {
				out[k] = string(blob)
			}
		}
	}
	return out, true
}
