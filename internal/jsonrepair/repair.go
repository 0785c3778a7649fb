// Package jsonrepair extracts and repairs JSON from free-form model
// output. Upstream generation tolerates conversational wrapping and
// truncation, so parsing is two-tier: local heuristics first, then a
// dedicated AI repair call.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

// RepairFunc is a model call whose sole job is returning corrected
// JSON for the given malformed text.
type RepairFunc func(raw string) (string, error)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Parser performs JSON extraction and repair.
type Parser struct {
	logger  logger.Logger
	observe func(tier, outcome string)
}

// New creates a Parser.
func New(log logger.Logger) *Parser {
	return &Parser{logger: log}
}

// WithObserver attaches a hook called per repair attempt with the tier
// ("local" or "ai") and outcome ("success" or "error").
func (p *Parser) WithObserver(fn func(tier, outcome string)) *Parser {
	p.observe = fn
	return p
}

func (p *Parser) report(tier, outcome string) {
	if p.observe != nil {
		p.observe(tier, outcome)
	}
}

// Parse attempts to extract valid JSON from raw using local heuristics
// only: direct parse, fence and trailing-comma stripping, balanced
// bracket extraction, and auto-closing of truncated output.
func (p *Parser) Parse(raw string) (json.RawMessage, error) {
	// Direct parse of the raw text.
	if valid(raw) {
		return json.RawMessage(raw), nil
	}

	cleaned := stripFences(raw)
	cleaned = stripTrailingCommas(cleaned)
	if valid(cleaned) {
		return json.RawMessage(cleaned), nil
	}

	candidate, err := p.extractBalanced(cleaned)
	if err != nil {
		return nil, err
	}

	if valid(candidate) {
		return json.RawMessage(candidate), nil
	}

	// One more trailing-comma pass; auto-closing can expose commas
	// that now precede a closing bracket.
	candidate = stripTrailingCommas(candidate)
	if valid(candidate) {
		return json.RawMessage(candidate), nil
	}

	return nil, fmt.Errorf("candidate still invalid after local repair: %w",
		json.Unmarshal([]byte(candidate), &struct{}{}))
}

// ParseWithRepair runs Parse and, when local repair fails entirely,
// invokes repairFn once and re-runs the local pipeline on its output.
// If that also fails, the returned error is a *domain.RepairError
// carrying both raw texts for diagnosis.
func (p *Parser) ParseWithRepair(raw string, repairFn RepairFunc) (json.RawMessage, error) {
	result, parseErr := p.Parse(raw)
	if parseErr == nil {
		p.report("local", "success")
		return result, nil
	}
	p.report("local", "error")

	if repairFn == nil {
		return nil, parseErr
	}

	p.logger.Warn("local JSON repair failed, invoking AI repair",
		logger.Error(parseErr),
		logger.Int("raw_length", len(raw)),
	)

	repaired, repairErr := repairFn(raw)
	if repairErr != nil {
		p.report("ai", "error")
		return nil, &domain.RepairError{ParseErr: parseErr, RepairErr: repairErr, Raw: raw}
	}

	result, secondErr := p.Parse(repaired)
	if secondErr != nil {
		p.report("ai", "error")
		return nil, &domain.RepairError{
			ParseErr:    parseErr,
			RepairErr:   secondErr,
			Raw:         raw,
			RepairedRaw: repaired,
		}
	}

	p.report("ai", "success")
	return result, nil
}

// Unmarshal is a convenience wrapper that parses with repair and
// decodes into v.
func (p *Parser) Unmarshal(raw string, repairFn RepairFunc, v any) error {
	data, err := p.ParseWithRepair(raw, repairFn)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode repaired JSON: %w", err)
	}
	return nil
}

// extractBalanced locates the first { or [ and scans forward for the
// matching close bracket, tracking string and escape state so brackets
// inside strings are ignored. Truncated input gets the missing closers
// appended best-effort.
func (p *Parser) extractBalanced(s string) (string, error) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", domain.ErrNoJSONFound
	}

	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}

	// Unbalanced: recover truncated output by closing what's open.
	candidate := s[start:]
	if inString {
		candidate += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		candidate += string(stack[i])
	}

	p.logger.Warn("JSON appears truncated, auto-closing brackets",
		logger.Int("appended", len(stack)),
	)

	return candidate, nil
}

func valid(s string) bool {
	return json.Valid([]byte(strings.TrimSpace(s)))
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// stripTrailingCommas removes commas directly preceding a closing
// bracket.
func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}
