package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"receiptmaker/internal/cache"
	"receiptmaker/internal/receipt"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestSectionTemplateWritesInvalidate(t *testing.T) {
	svc := NewSectionTemplateService(newTestDB(t), nil)
	inv := &countingInvalidator{}
	svc.SetCache(inv)
	ctx := context.Background()

	created, err := svc.Create(ctx, SectionTemplateInput{
		SectionType: receipt.KindCustomMessage,
		DefaultData: json.RawMessage(`{"message":"Come again"}`),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != string(receipt.KindCustomMessage) {
		t.Fatalf("name should default to the type, got %q", created.Name)
	}
	if _, err := svc.Update(ctx, created.ID, SectionTemplateInput{DefaultData: json.RawMessage(`{"message":"See you"}`)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if inv.calls != 3 {
		t.Fatalf("expected 3 invalidations, got %d", inv.calls)
	}

	// Failed writes leave the cache alone.
	if _, err := svc.Create(ctx, SectionTemplateInput{SectionType: "coupon", DefaultData: json.RawMessage(`{}`)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if inv.calls != 3 {
		t.Fatalf("failed write invalidated the cache")
	}
}

func TestSectionTemplateValidation(t *testing.T) {
	svc := NewSectionTemplateService(newTestDB(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SectionTemplateInput
	}{
		{"unknown type", SectionTemplateInput{SectionType: "coupon", DefaultData: json.RawMessage(`{}`)}},
		{"not an object", SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`[1,2]`)}},
		{"type mismatch", SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`{"type":"header","value":"1"}`)}},
		{"missing required key", SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`{"size":1}`)}},
		{"out of range field", SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`{"value":"1","size":-1}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	first, err := svc.Create(ctx, SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`{"value":"42"}`)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, SectionTemplateInput{SectionType: receipt.KindBarcode, DefaultData: json.RawMessage(`{"value":"43"}`)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for a second default of the same type, got %v", err)
	}
	if _, err := svc.Update(ctx, first.ID, SectionTemplateInput{SectionType: receipt.KindHeader, DefaultData: json.RawMessage(`{"businessDetails":"x"}`)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("changing the type should be rejected, got %v", err)
	}
}

func TestSectionDefaultsFollowAdminWrites(t *testing.T) {
	svc := NewSectionTemplateService(newTestDB(t), nil)
	defaults := cache.NewSectionDefaults(svc, nil, nil)
	svc.SetCache(defaults)
	ctx := context.Background()

	sec, err := defaults.Default(ctx, receipt.KindCustomMessage)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if got := sec.(*receipt.CustomMessageSection).Message; got != "Thank you for your purchase!" {
		t.Fatalf("expected hardcoded default, got %q", got)
	}

	created, err := svc.Create(ctx, SectionTemplateInput{
		SectionType: receipt.KindCustomMessage,
		DefaultData: json.RawMessage(`{"message":"Come again","alignment":"left"}`),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sec, err = defaults.Default(ctx, receipt.KindCustomMessage)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	msg := sec.(*receipt.CustomMessageSection)
	if msg.Message != "Come again" || msg.Alignment != receipt.AlignLeft {
		t.Fatalf("cache served a stale default %+v", msg)
	}
	if msg.SectionID() != "" {
		t.Fatalf("stored defaults carry no id, got %q", msg.SectionID())
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	sec, _ = defaults.Default(ctx, receipt.KindCustomMessage)
	if got := sec.(*receipt.CustomMessageSection).Message; got != "Thank you for your purchase!" {
		t.Fatalf("expected hardcoded default after delete, got %q", got)
	}
}
