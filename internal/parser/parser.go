package parser

import "errors"

var ErrNoStatusText = errors.New("no status text found on page")

// Snapshot is the page state captured after the tracking form was submitted.
// VisibleText is the rendered innerText of the body; when empty it is derived
// from HTML.
type Snapshot struct {
	HTML        string
	VisibleText string
}

type Parser interface {
	ResultText(snap Snapshot) (string, error)
	StageStatus(snap Snapshot) (string, error)
}
