package marketdata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
)

// Extractor pulls one numeric value out of an upstream response body.
// Implementations must tolerate arbitrary payloads and report failure
// through the boolean rather than panicking.
type Extractor interface {
	Name() string
	Extract(payload []byte) (float64, bool)
}

// JSONPathExtractor reads a value at a gjson path. Numeric strings with
// currency decorations ("₹7,512.40") are accepted.
type JSONPathExtractor struct {
	name string
	path string
}

// NewJSONPathExtractor constructs a JSONPathExtractor.
func NewJSONPathExtractor(name, path string) JSONPathExtractor {
	return JSONPathExtractor{name: name, path: path}
}

// Name identifies the extractor in logs and source metadata.
func (e JSONPathExtractor) Name() string { return e.name }

// Extract implements Extractor.
func (e JSONPathExtractor) Extract(payload []byte) (float64, bool) {
	result := gjson.GetBytes(payload, e.path)
	switch result.Type {
	case gjson.Number:
		return result.Float(), true
	case gjson.String:
		return parseAmount(result.String())
	default:
		return 0, false
	}
}

// RegexExtractor captures a numeric group from the raw payload.
type RegexExtractor struct {
	name    string
	pattern *regexp.Regexp
	group   int
}

// NewRegexExtractor constructs a RegexExtractor capturing the given group.
func NewRegexExtractor(name string, pattern *regexp.Regexp, group int) RegexExtractor {
	return RegexExtractor{name: name, pattern: pattern, group: group}
}

// Name identifies the extractor in logs and source metadata.
func (e RegexExtractor) Name() string { return e.name }

// Extract implements Extractor.
func (e RegexExtractor) Extract(payload []byte) (float64, bool) {
	match := e.pattern.FindSubmatch(payload)
	if match == nil || e.group >= len(match) {
		return 0, false
	}
	return parseAmount(string(match[e.group]))
}

// HTMLTextExtractor strips markup before applying a pattern, so prices can
// be lifted out of market pages whose tag structure shifts between deploys.
type HTMLTextExtractor struct {
	name    string
	pattern *regexp.Regexp
	group   int
	policy  *bluemonday.Policy
}

// NewHTMLTextExtractor constructs an HTMLTextExtractor capturing the given group.
func NewHTMLTextExtractor(name string, pattern *regexp.Regexp, group int) HTMLTextExtractor {
	return HTMLTextExtractor{
		name:    name,
		pattern: pattern,
		group:   group,
		policy:  bluemonday.StrictPolicy(),
	}
}

// Name identifies the extractor in logs and source metadata.
func (e HTMLTextExtractor) Name() string { return e.name }

// Extract implements Extractor.
func (e HTMLTextExtractor) Extract(payload []byte) (float64, bool) {
	text := e.policy.SanitizeBytes(payload)
	match := e.pattern.FindSubmatch(text)
	if match == nil || e.group >= len(match) {
		return 0, false
	}
	return parseAmount(string(match[e.group]))
}

// Chain tries extractors in declaration order and returns the first value
// that passes validation. Order expresses trust: structured API paths come
// before loose page-scraping patterns.
type Chain struct {
	extractors []Extractor
	validate   func(float64) bool
}

// NewChain constructs a Chain. A nil validate accepts any positive value.
func NewChain(validate func(float64) bool, extractors ...Extractor) Chain {
	if validate == nil {
		validate = func(v float64) bool { return v > 0 }
	}
	return Chain{extractors: extractors, validate: validate}
}

// Extract runs the chain against the payload and returns the winning value
// with the name of the extractor that produced it.
func (c Chain) Extract(payload []byte) (float64, string, error) {
	for _, extractor := range c.extractors {
		value, ok := extractor.Extract(payload)
		if !ok {
			continue
		}
		if !c.validate(value) {
			continue
		}
		return value, extractor.Name(), nil
	}
	return 0, "", fmt.Errorf("marketdata: no extractor produced a valid value from %d bytes", len(payload))
}

var amountCleaner = strings.NewReplacer(",", "", "₹", "", "$", "", "Rs.", "", "Rs", "", "INR", "", " ", "", " ", "")

func parseAmount(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(amountCleaner.Replace(raw))
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
