package profiles

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func rolePtr(r Role) *Role    { return &r }

func TestPatchNormalizeSanitizesFullName(t *testing.T) {
	patch, err := Patch{FullName: strPtr("  <b>Ada</b>   Lovelace <script>x</script> ")}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *patch.FullName != "Ada Lovelace" {
		t.Fatalf("expected sanitized name, got %q", *patch.FullName)
	}
}

func TestPatchNormalizeKeepsAmpersand(t *testing.T) {
	patch, err := Patch{FullName: strPtr("Tom & Jerry")}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *patch.FullName != "Tom & Jerry" {
		t.Fatalf("expected ampersand preserved, got %q", *patch.FullName)
	}
}

func TestPatchNormalizeRejectsUnknownRole(t *testing.T) {
	_, err := Patch{Role: rolePtr("owner")}.Normalize()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(vErr.Message, "role must be one of: user, admin") {
		t.Fatalf("unexpected message %q", vErr.Message)
	}
	if _, ok := vErr.Fields["role"]; !ok {
		t.Fatalf("expected role field detail, got %v", vErr.Fields)
	}
}

func TestPatchNormalizeRejectsBadAvatarAndEmail(t *testing.T) {
	_, err := Patch{Email: strPtr("nope"), AvatarURL: strPtr("javascript:alert(1)")}.Normalize()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Message != "email must be a valid email; avatar_url must be an http or https URL" {
		t.Fatalf("unexpected message %q", vErr.Message)
	}
}

func TestPatchNormalizeAllowsClearingAvatar(t *testing.T) {
	patch, err := Patch{AvatarURL: strPtr("  ")}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile := patch.Apply(Profile{AvatarURL: strPtr("https://cdn.example.com/a.png")})
	if profile.AvatarURL != nil {
		t.Fatalf("expected avatar cleared, got %v", *profile.AvatarURL)
	}
}

func TestPatchNormalizeLowercasesRoleAndEmail(t *testing.T) {
	patch, err := Patch{Role: rolePtr(" ADMIN "), Email: strPtr(" Ada@Example.COM ")}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *patch.Role != RoleAdmin || *patch.Email != "ada@example.com" {
		t.Fatalf("unexpected normalization: %v %v", *patch.Role, *patch.Email)
	}
}

func TestPatchApplyLeavesNilFieldsUntouched(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	original := Profile{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		FullName:     strPtr("Ada"),
		Role:         RoleAdmin,
		IsSubscriber: true,
	}
	updated := Patch{HasAcceptedTerms: boolPtr(true), LastActiveAt: &at}.Apply(original)

	if updated.Email != original.Email || *updated.FullName != "Ada" || updated.Role != RoleAdmin || !updated.IsSubscriber {
		t.Fatalf("expected untouched fields to survive, got %+v", updated)
	}
	if !updated.HasAcceptedTerms || updated.LastActiveAt == nil || !updated.LastActiveAt.Equal(at) {
		t.Fatalf("expected patched fields, got %+v", updated)
	}
}

func TestPatchSelfServiceFields(t *testing.T) {
	if !(Patch{FullName: strPtr("x"), HasAcceptedTerms: boolPtr(true)}).OnlySelfServiceFields() {
		t.Fatal("expected name and terms to be self service")
	}
	if (Patch{Role: rolePtr(RoleAdmin)}).OnlySelfServiceFields() {
		t.Fatal("expected role change to require admin")
	}
	if (Patch{IsSubscriber: boolPtr(true)}).OnlySelfServiceFields() {
		t.Fatal("expected subscription change to require admin")
	}
}

func TestPlaceholderDefaults(t *testing.T) {
	id := uuid.New()
	p := NewPlaceholder(id, "new@example.com")
	if p.ID != id || p.Email != "new@example.com" {
		t.Fatalf("unexpected identity: %+v", p)
	}
	if p.Role != RoleUser || p.IsSubscriber || p.HasAcceptedTerms || p.IsAdmin() {
		t.Fatalf("unexpected placeholder defaults: %+v", p)
	}
}

func TestIsAdminIsStrict(t *testing.T) {
	if (Profile{Role: "Admin"}).IsAdmin() {
		t.Fatal("expected case-sensitive admin check")
	}
	if !(Profile{Role: RoleAdmin}).IsAdmin() {
		t.Fatal("expected admin role to be admin")
	}
}
