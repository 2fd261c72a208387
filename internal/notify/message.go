// Package notify renders and delivers operator notifications.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"hrsync/internal/hrsync"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Renderer builds messages from the embedded templates.
type Renderer struct {
	prefix    string
	templates map[string]*template.Template
}

var funcs = template.FuncMap{"join": strings.Join}

// NewRenderer parses the embedded templates. prefix is prepended to every
// subject, e.g. "[hrsync]".
func NewRenderer(prefix string) (*Renderer, error) {
	r := &Renderer{prefix: prefix, templates: make(map[string]*template.Template)}
	for _, name := range []string{"approval", "completion", "failure"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/"+name+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

func (r *Renderer) render(name string, data any) (Message, error) {
	t := r.templates[name]
	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("rendering %s subject: %w", name, err)
	}
	if err := t.ExecuteTemplate(&body, "body", data); err != nil {
		return Message{}, fmt.Errorf("rendering %s body: %w", name, err)
	}
	s := strings.TrimSpace(subject.String())
	if r.prefix != "" {
		s = r.prefix + " " + s
	}
	return Message{Subject: s, Body: body.String()}, nil
}

type fileChange struct {
	File    string
	Added   []string
	Removed []string
}

// Approval renders the approval request for a gated run.
func (r *Renderer) Approval(logID string, changes map[string]hrsync.StructureChange) (Message, error) {
	files := make([]fileChange, 0, len(changes))
	for name, c := range changes {
		files = append(files, fileChange{File: name, Added: c.Added, Removed: c.Removed})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].File < files[j].File })
	return r.render("approval", struct {
		LogID   string
		Changes []fileChange
	}{logID, files})
}

// Completion renders the summary of a completed run.
func (r *Renderer) Completion(logID string, results *hrsync.RunResults, counts map[string]hrsync.DiffCounts) (Message, error) {
	if results == nil {
		results = &hrsync.RunResults{}
	}
	return r.render("completion", struct {
		LogID      string
		Results    *hrsync.RunResults
		DiffCounts map[string]hrsync.DiffCounts
	}{logID, results, counts})
}

// Failure renders a failure alert. logID is empty when the run never started.
func (r *Renderer) Failure(logID string, cause error, fc hrsync.FailureContext) (Message, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return r.render("failure", struct {
		LogID   string
		Error   string
		Context hrsync.FailureContext
	}{logID, msg, fc})
}
