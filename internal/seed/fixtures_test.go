package seed

import (
	"strings"
	"testing"

	"cookiegram/internal/models"
)

func TestDemoFixture_AppliesAndIsIdempotentForUsers(t *testing.T) {
	fx, err := DemoFixture()
	if err != nil {
		t.Fatalf("load demo fixture: %v", err)
	}
	if len(fx.Users) == 0 || len(fx.Posts) == 0 {
		t.Fatalf("demo fixture is empty")
	}

	db := openTestDB(t)
	s := NewSeeder(db, Options{})
	if err := s.ApplyFixture(fx); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.ApplyFixture(fx); err != nil {
		t.Fatalf("re-apply: %v", err)
	}

	if n := count(t, db, &models.User{}); n != int64(len(fx.Users)) {
		t.Fatalf("expected %d users, got %d", len(fx.Users), n)
	}
	if n := count(t, db, &models.Follow{}); n != int64(len(fx.Follows)) {
		t.Fatalf("expected %d follows, got %d", len(fx.Follows), n)
	}

	var grill models.User
	if err := db.Where("external_id = ?", "user_demo_grill").First(&grill).Error; err != nil {
		t.Fatalf("find user: %v", err)
	}
	if grill.Bio != models.DefaultBio {
		t.Fatalf("expected default bio, got %q", grill.Bio)
	}
}

func TestLoadFixture_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown key",
			doc:     "users:\n  - clerk_id: a\n    nickname: x\n",
			wantErr: "nickname",
		},
		{
			name:    "unknown owner",
			doc:     "users:\n  - clerk_id: a\nposts:\n  - owner: b\n    image_url: https://x/y.png\n",
			wantErr: `unknown user "b"`,
		},
		{
			name:    "self follow",
			doc:     "users:\n  - clerk_id: a\nfollows:\n  - follower: a\n    followee: a\n",
			wantErr: "cannot follow themselves",
		},
		{
			name:    "missing image",
			doc:     "users:\n  - clerk_id: a\nposts:\n  - owner: a\n",
			wantErr: "no image_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixture(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
