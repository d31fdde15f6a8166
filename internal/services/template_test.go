package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"receiptmaker/internal/models"
	"receiptmaker/internal/receipt"
)

func TestTemplateCreateValidation(t *testing.T) {
	svc := NewTemplateService(newTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		mod   func(*TemplateInput)
		field string
	}{
		{"slug with spaces", func(in *TemplateInput) { in.Slug = "Corner Cafe" }, "slug"},
		{"slug with double hyphen", func(in *TemplateInput) { in.Slug = "corner--cafe" }, "slug"},
		{"slug with trailing hyphen", func(in *TemplateInput) { in.Slug = "cafe-" }, "slug"},
		{"empty name", func(in *TemplateInput) { in.Name = "   " }, "name"},
		{"long name", func(in *TemplateInput) { in.Name = strings.Repeat("a", maxNameLength+1) }, "name"},
		{"unknown tier", func(in *TemplateInput) { in.Tier = "gold" }, "tier"},
		{"unknown section type", func(in *TemplateInput) {
			in.Sections = json.RawMessage(`[{"type":"coupon","id":"coupon-1"}]`)
		}, "sections"},
		{"missing required key", func(in *TemplateInput) {
			in.Sections = json.RawMessage(`[{"type":"custom_message","id":"custom_message-1"}]`)
		}, "sections"},
		{"bad settings", func(in *TemplateInput) {
			in.Settings = json.RawMessage(`{"font":"comic-sans"}`)
		}, "settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := templateInput("Corner Cafe", "corner-cafe")
			tt.mod(&in)
			_, err := svc.Create(ctx, in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestTemplateCreateAndRead(t *testing.T) {
	svc := NewTemplateService(newTestDB(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, templateInput(" Corner Cafe ", "corner-cafe"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "Corner Cafe" || created.Tier != models.TierFree {
		t.Fatalf("unexpected template %+v", created)
	}

	got, err := svc.GetBySlug(ctx, "corner-cafe")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	doc, err := got.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if len(doc.Sections) != 4 || doc.Sections[0].Kind() != receipt.KindHeader {
		t.Fatalf("unexpected sections %v", doc.Sections)
	}
	if doc.Settings != receipt.DefaultSettings() {
		t.Fatalf("missing settings should default, got %+v", doc.Settings)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTemplateSlugConflict(t *testing.T) {
	svc := NewTemplateService(newTestDB(t))
	ctx := context.Background()

	first, err := svc.Create(ctx, templateInput("Cafe", "cafe"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, templateInput("Other Cafe", "cafe")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	second, err := svc.Create(ctx, templateInput("Bakery", "bakery"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Update(ctx, second.ID, templateInput("Bakery", "cafe")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on update, got %v", err)
	}
	// Keeping its own slug is not a conflict.
	if _, err := svc.Update(ctx, second.ID, templateInput("Bakery 2", "bakery")); err != nil {
		t.Fatalf("Update own slug: %v", err)
	}

	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Create(ctx, templateInput("Cafe again", "cafe")); !errors.Is(err, ErrConflict) {
		t.Fatalf("soft-deleted slug should stay reserved, got %v", err)
	}
	if err := svc.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
