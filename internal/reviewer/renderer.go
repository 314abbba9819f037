package reviewer

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/errors"
)

// Renderer turns stored prompt templates into provider-ready prompts.
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer creates a renderer with the helper functions templates
// may use.
func NewRenderer() *Renderer {
	return &Renderer{
		funcs: template.FuncMap{
			"join": strings.Join,
			"indent": func(spaces int, s string) string {
				pad := strings.Repeat(" ", spaces)
				return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
			},
			"add": func(a, b int) int { return a + b },
		},
	}
}

// Render executes a stored template against the assembled context.
// Parse and execution failures are reported as template render errors;
// operator-authored templates are not trusted to be well-formed.
func (r *Renderer) Render(tmpl *model.PromptTemplate, cc *CodeContext) (string, error) {
	t, err := template.New(tmpl.Name).Funcs(r.funcs).Parse(tmpl.Content)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeTemplateRender,
			"failed to parse prompt template: "+tmpl.Name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, cc); err != nil {
		return "", errors.Wrap(errors.ErrCodeTemplateRender,
			"failed to render prompt template: "+tmpl.Name, err)
	}
	return buf.String(), nil
}
