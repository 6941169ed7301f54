package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

const (
	layoutDir   = "layouts"
	frontmatter = "---"
)

// Rendered is one rendered message.
type Rendered struct {
	Meta    map[string]any
	Subject string
	HTML    string
	Text    string
}

// Renderer parses templates from an fs.FS once and renders them many times.
type Renderer struct {
	fsys    fs.FS
	md      goldmark.Markdown
	bodies  map[string]*parsed
	layouts map[string]*template.Template
	mu      sync.RWMutex
}

type parsed struct {
	meta    map[string]any
	body    *texttemplate.Template
	subject *texttemplate.Template
}

func NewRenderer(fsys fs.FS) *Renderer {
	return &Renderer{
		fsys:    fsys,
		md:      goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Table)),
		bodies:  make(map[string]*parsed),
		layouts: make(map[string]*template.Template),
	}
}

// Render executes name with data and wraps it in layout. The subject comes
// from the "subject" frontmatter key and is a template too.
func (r *Renderer) Render(layout, name string, data any) (*Rendered, error) {
	p, err := r.template(name)
	if err != nil {
		return nil, err
	}

	var text bytes.Buffer
	if err := p.body.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
	}
	var subject bytes.Buffer
	if p.subject != nil {
		if err := p.subject.Execute(&subject, data); err != nil {
			return nil, fmt.Errorf("%w: %s subject: %w", ErrRenderFailed, name, err)
		}
	}

	var content bytes.Buffer
	if err := r.md.Convert(text.Bytes(), &content); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
	}

	lt, err := r.layout(layout)
	if err != nil {
		return nil, err
	}
	var html bytes.Buffer
	if err := lt.Execute(&html, map[string]any{
		"Content": template.HTML(content.String()),
		"Subject": subject.String(),
		"Meta":    p.meta,
	}); err != nil {
		return nil, fmt.Errorf("%w: layout %s: %w", ErrRenderFailed, layout, err)
	}

	return &Rendered{
		Meta:    p.meta,
		Subject: subject.String(),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func (r *Renderer) template(name string) (*parsed, error) {
	r.mu.RLock()
	p, ok := r.bodies[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	raw, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}

	p = &parsed{meta: meta}
	if p.body, err = texttemplate.New(name).Parse(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
	}
	if s, ok := meta["subject"].(string); ok && s != "" {
		if p.subject, err = texttemplate.New(name + ":subject").Parse(s); err != nil {
			return nil, fmt.Errorf("%w: %s subject: %w", ErrRenderFailed, name, err)
		}
	}

	r.mu.Lock()
	r.bodies[name] = p
	r.mu.Unlock()
	return p, nil
}

func (r *Renderer) layout(name string) (*template.Template, error) {
	r.mu.RLock()
	t, ok := r.layouts[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	raw, err := fs.ReadFile(r.fsys, path.Join(layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, name)
	}
	if t, err = template.New(name).Parse(string(raw)); err != nil {
		return nil, fmt.Errorf("%w: layout %s: %w", ErrRenderFailed, name, err)
	}

	r.mu.Lock()
	r.layouts[name] = t
	r.mu.Unlock()
	return t, nil
}

// splitFrontmatter separates a leading "---" delimited YAML block from the
// body. Content without one is all body.
func splitFrontmatter(raw []byte) (map[string]any, string, error) {
	meta := map[string]any{}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if !bytes.HasPrefix(raw, []byte(frontmatter)) {
		return meta, string(raw), nil
	}

	rest := append([]byte("\n"), bytes.TrimLeft(raw[len(frontmatter):], "\r\n")...)
	head, body, ok := bytes.Cut(rest, []byte("\n"+frontmatter))
	if !ok {
		return nil, "", fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}
	if err := yaml.Unmarshal(head, &meta); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidFrontmatter, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	body = bytes.TrimPrefix(bytes.TrimPrefix(body, []byte("\r")), []byte("\n"))
	return meta, string(body), nil
}
