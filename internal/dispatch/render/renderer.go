// Package render resolves a campaign's template and substitutes contact
// variables. Rendering is a collaborator to the scheduler; this default
// implementation does simple {placeholder} replacement over the contact
// payload.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// Renderer produces the final message text for one contact.
type Renderer interface {
	Render(ctx context.Context, templateID uuid.UUID, data map[string]string) (string, error)
}

// TemplateRenderer loads template bodies from storage and replaces
// {key} placeholders with values from the data bag.
type TemplateRenderer struct {
	templates domain.TemplateRepository
}

func NewTemplateRenderer(templates domain.TemplateRepository) *TemplateRenderer {
	return &TemplateRenderer{templates: templates}
}

func (r *TemplateRenderer) Render(ctx context.Context, templateID uuid.UUID, data map[string]string) (string, error) {
	body, err := r.templates.GetBody(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", templateID, err)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("template %s is empty", templateID)
	}
	return Substitute(body, data), nil
}

// Substitute replaces every {key} occurrence with its value. Unknown
// placeholders are left untouched so downstream audit can spot them.
func Substitute(body string, data map[string]string) string {
	out := body
	for key, value := range data {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}
