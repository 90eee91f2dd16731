package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

type Options struct {
	ResultSelectors []string
	ActiveSelectors []string
	Stages          []string
	Delimiter       string
	MinResultLength int
	MaxStatusLength int
}

type StatusParser struct {
	opts Options
}

func NewStatusParser(opts Options) *StatusParser {
	if opts.Delimiter == "" {
		opts.Delimiter = " | "
	}
	if opts.MinResultLength <= 0 {
		opts.MinResultLength = 3
	}
	if opts.MaxStatusLength <= 0 {
		opts.MaxStatusLength = 500
	}
	return &StatusParser{opts: opts}
}

// ResultText returns the first result-like element with a meaningful text,
// falling back to the whole visible page text.
func (p *StatusParser) ResultText(snap Snapshot) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, selector := range p.opts.ResultSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapseSpaces(s.Text())
			if utf8.RuneCountInString(text) >= p.opts.MinResultLength {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found, nil
		}
	}

	if text := strings.TrimSpace(visibleText(doc, snap)); text != "" {
		return text, nil
	}

	return "", ErrNoStatusText
}

// StageStatus resolves the lifecycle stage shown on the page. It prefers an
// element marked as active, then every element naming a known stage, then
// visible lines naming a stage, then the truncated body text.
func (p *StatusParser) StageStatus(snap Snapshot) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	if active := p.activeStage(doc); active != "" {
		return active, nil
	}

	if stages := p.matchingStageElements(doc); len(stages) > 0 {
		return strings.Join(stages, p.opts.Delimiter), nil
	}

	text := visibleText(doc, snap)

	if lines := p.matchingLines(text); len(lines) > 0 {
		return strings.Join(lines, "\n"), nil
	}

	if body := Truncate(strings.TrimSpace(text), p.opts.MaxStatusLength); body != "" {
		return body, nil
	}

	return "", ErrNoStatusText
}

func (p *StatusParser) activeStage(doc *goquery.Document) string {
	for _, selector := range p.opts.ActiveSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapseSpaces(s.Text())
			if p.MatchesStage(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// matchingStageElements walks leaf elements in document order so that
// containers holding the whole stepper are not reported.
func (p *StatusParser) matchingStageElements(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var stages []string

	doc.Find("body *").Not("script, style, noscript").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := collapseSpaces(s.Text())
		if text == "" || seen[text] || !p.MatchesStage(text) {
			return
		}
		seen[text] = true
		stages = append(stages, text)
	})

	return stages
}

func (p *StatusParser) matchingLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && p.MatchesStage(line) {
			lines = append(lines, line)
		}
	}
	return lines
}

// MatchesStage reports whether text names one of the known stages, ignoring case.
func (p *StatusParser) MatchesStage(text string) bool {
	lower := strings.ToLower(text)
	for _, stage := range p.opts.Stages {
		if stage != "" && strings.Contains(lower, strings.ToLower(stage)) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func visibleText(doc *goquery.Document, snap Snapshot) string {
	if strings.TrimSpace(snap.VisibleText) != "" {
		return snap.VisibleText
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
