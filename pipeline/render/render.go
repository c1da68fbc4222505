// Package render writes generated course material into a single HTML
// document. Each terminal envelope becomes a section keyed by a slug of its
// title; a navigation header written at bootstrap links the sections.
package render

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RenderError wraps a failure to write to the output document.
type RenderError struct {
	Path  string
	Cause error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render to '%s' failed: %v", e.Path, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Slug normalizes a title into a section anchor. Letters and digits are
// lowered; every other run of characters collapses to a single hyphen.
func Slug(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Document is the terminal HTML sink. Appends are serialized under a mutex
// so sections from concurrent stages never interleave. The closing tags are
// written once at shutdown.
type Document struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// Open creates (or truncates) the document at path.
func Open(path string) (*Document, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &RenderError{Path: path, Cause: err}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &RenderError{Path: path, Cause: err}
	}
	return &Document{path: path, file: file}, nil
}

// Path returns the document's file path.
func (d *Document) Path() string {
	return d.path
}

// WriteHeader emits the document preamble and a navigation list linking the
// given titles to their section anchors.
func (d *Document) WriteHeader(title string, titles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return &RenderError{Path: d.path, Cause: fmt.Errorf("document is closed")}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	b.WriteString("<nav>\n<ul>\n")
	for _, t := range titles {
		fmt.Fprintf(&b, "<li><a href=\"#%s\">%s</a></li>\n", Slug(t), html.EscapeString(t))
	}
	b.WriteString("</ul>\n</nav>\n")

	return d.write(b.String())
}

// Append writes one section under the given anchor id. The heading and body
// are HTML-escaped; the body's line breaks are preserved as paragraph
// breaks. Callers writing one section per stage suffix the id with the
// stage name to keep anchors unique.
func (d *Document) Append(sectionID, heading, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return &RenderError{Path: d.path, Cause: fmt.Errorf("document is closed")}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<section id=\"%s\">\n", Slug(sectionID))
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(heading))
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := strings.ReplaceAll(html.EscapeString(para), "\n", "<br>\n")
		fmt.Fprintf(&b, "<p>%s</p>\n", escaped)
	}
	b.WriteString("</section>\n")

	return d.write(b.String())
}

// Close writes the closing tags and releases the file. Safe to call more
// than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.write("</body>\n</html>\n"); err != nil {
		_ = d.file.Close()
		return err
	}
	if err := d.file.Close(); err != nil {
		return &RenderError{Path: d.path, Cause: err}
	}
	return nil
}

func (d *Document) write(s string) error {
	if _, err := d.file.WriteString(s); err != nil {
		return &RenderError{Path: d.path, Cause: err}
	}
	return nil
}
