package services

import (
	"context"
	"testing"

	"receiptmaker/internal/models"
)

func TestPremiumStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewPremiumService(db)
	ctx := context.Background()

	for _, id := range []string{"", "nobody"} {
		st, err := svc.Status(ctx, id)
		if err != nil || st.IsPremium {
			t.Fatalf("Status(%q) = %+v, %v; want not premium", id, st, err)
		}
	}

	if err := svc.EnsureUser(ctx, "u1", "a@example.com", "A"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", "u1").Updates(map[string]any{"is_premium": true, "plan": "pro"}).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
	// Seeing the user again must not reset the billing fields.
	if err := svc.EnsureUser(ctx, "u1", "a@example.com", "Renamed"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	st, err := svc.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.IsPremium || st.Plan != "pro" {
		t.Fatalf("expected premium pro, got %+v", st)
	}

	var u models.User
	if err := db.First(&u, "id = ?", "u1").Error; err != nil || u.Name != "Renamed" {
		t.Fatalf("name not refreshed: %+v %v", u, err)
	}
}
