package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-playground/validator/v10"
)

//go:embed templates/*.html
var embedded embed.FS

// RFQContext is the placeholder set available to RFQ templates. The
// required fields must be non-empty for a message to render.
type RFQContext struct {
	Fornecedor    string `validate:"required"`
	Categoria     string `validate:"required"`
	Material      string `validate:"required"`
	Quantidade    int    `validate:"gt=0"`
	Especificacao string `validate:"required"`
	Prazo         string `validate:"required"`

	RequestID      uint
	DeliveryDue    string
	RemetenteEmail string
}

// sampleContext fills every field so start-up execution reaches all branches.
var sampleContext = RFQContext{
	Fornecedor:     "exemplo",
	Categoria:      "exemplo",
	Material:       "exemplo",
	Quantidade:     1,
	Especificacao:  "exemplo",
	Prazo:          "2006-01-02",
	RequestID:      1,
	DeliveryDue:    "2006-01-02",
	RemetenteEmail: "compras@example.com",
}

// Renderer holds parsed RFQ templates keyed by id (file name without .html).
type Renderer struct {
	templates map[string]*template.Template
	validate  *validator.Validate
}

// DefaultRenderer loads the templates compiled into the binary.
func DefaultRenderer() (*Renderer, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return NewRenderer(sub)
}

// NewRenderer parses every *.html file at the root of fsys. Each template is
// executed once against a sample context, so a reference to a placeholder
// RFQContext does not define fails here rather than at send time.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	paths, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no *.html templates found", ErrTemplate)
	}

	r := &Renderer{
		templates: make(map[string]*template.Template, len(paths)),
		validate:  validator.New(),
	}
	for _, p := range paths {
		name := path.Base(p)
		id := strings.TrimSuffix(name, ".html")

		t, err := template.New(name).
			Funcs(sprig.FuncMap()).
			Option("missingkey=error").
			ParseFS(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrTemplate, id, err)
		}
		if err := t.Execute(io.Discard, sampleContext); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, id, err)
		}
		r.templates[id] = t
	}
	return r, nil
}

// Has reports whether a template with the given id was loaded.
func (r *Renderer) Has(templateID string) bool {
	_, ok := r.templates[templateID]
	return ok
}

// IDs returns the loaded template ids in ascending order.
func (r *Renderer) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render executes templateID against data.
func (r *Renderer) Render(templateID string, data RFQContext) (string, error) {
	t, ok := r.templates[templateID]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", ErrTemplate, templateID)
	}
	if err := r.validate.Struct(data); err != nil {
		return "", fmt.Errorf("%w: %s: missing placeholder: %v", ErrTemplate, templateID, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplate, templateID, err)
	}
	return buf.String(), nil
}
