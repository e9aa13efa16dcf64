package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExtractor struct {
	raw string
	err error
}

func (f *fakeExtractor) ExtractInformation(context.Context, string, string) (string, error) {
	return f.raw, f.err
}

func TestExtractInformationJSON(t *testing.T) {
	ex := &fakeExtractor{raw: `{"research topic": "edge caching", "research method": "simulation"}`}
	got := ExtractInformation(context.Background(), ex, "we study edge caching", "initial")
	assert.Equal(t, map[string]string{
		"research topic":  "edge caching",
		"research method": "simulation",
	}, got)
}

func TestExtractInformationJSONInProse(t *testing.T) {
	ex := &fakeExtractor{raw: "Here is what I found:\n```json\n{\"research topic\": \"x\"}\n```\nHope that helps."}
	got := ExtractInformation(context.Background(), ex, "input", "initial")
	assert.Equal(t, map[string]string{"research topic": "x"}, got)
}

func TestExtractInformationBackendError(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("down")}
	got := ExtractInformation(context.Background(), ex, "the raw user text", "results")
	assert.Equal(t, map[string]string{FallbackKey: "the raw user text"}, got)
}

func TestExtractInformationUnparseable(t *testing.T) {
	ex := &fakeExtractor{raw: "I could not find any structured information."}
	got := ExtractInformation(context.Background(), ex, "raw input", "initial")
	assert.Equal(t, map[string]string{FallbackKey: "raw input"}, got)
}

func TestExtractInformationEmptyObject(t *testing.T) {
	ex := &fakeExtractor{raw: `{}`}
	got := ExtractInformation(context.Background(), ex, "raw input", "initial")
	assert.Equal(t, map[string]string{FallbackKey: "raw input"}, got)
}

func TestExtractInformationCoercesValues(t *testing.T) {
	ex := &fakeExtractor{raw: `{"sample size": 240, "pilot": true, "skip": null, "citations": ["a", "b"]}`}
	got := ExtractInformation(context.Background(), ex, "input", "methodology")
	assert.Equal(t, "240", got["sample size"])
	assert.Equal(t, "true", got["pilot"])
	assert.Equal(t, `["a","b"]`, got["citations"])
	assert.NotContains(t, got, "skip")
}

func TestExtractInformationMalformedJSON(t *testing.T) {
	ex := &fakeExtractor{raw: `{"research topic": `}
	got := ExtractInformation(context.Background(), ex, "raw", "initial")
	assert.Equal(t, map[string]string{FallbackKey: "raw"}, got)
}
