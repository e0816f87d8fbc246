package profiles

import (
	"fmt"
	"html"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Patch is a partial profile update. Nil fields are left untouched.
type Patch struct {
	Email            *string    `json:"email,omitempty" validate:"omitempty,email,max=320"`
	FullName         *string    `json:"full_name,omitempty" validate:"omitempty,max=200"`
	AvatarURL        *string    `json:"avatar_url,omitempty" validate:"omitempty,avatar_url,max=2048"`
	Role             *Role      `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	IsSubscriber     *bool      `json:"is_subscriber,omitempty"`
	HasAcceptedTerms *bool      `json:"has_accepted_terms,omitempty"`
	LastActiveAt     *time.Time `json:"last_active_at,omitempty"`
}

// Empty reports whether the patch carries no changes.
func (p Patch) Empty() bool {
	return p.Email == nil &&
		p.FullName == nil &&
		p.AvatarURL == nil &&
		p.Role == nil &&
		p.IsSubscriber == nil &&
		p.HasAcceptedTerms == nil &&
		p.LastActiveAt == nil
}

// OnlySelfServiceFields reports whether a non-admin may apply the patch to
// their own profile.
func (p Patch) OnlySelfServiceFields() bool {
	return p.Email == nil && p.Role == nil && p.IsSubscriber == nil
}

// Apply returns a copy of profile with the patch applied.
func (p Patch) Apply(profile Profile) Profile {
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.FullName != nil {
		profile.FullName = nullableString(*p.FullName)
	}
	if p.AvatarURL != nil {
		profile.AvatarURL = nullableString(*p.AvatarURL)
	}
	if p.Role != nil {
		profile.Role = *p.Role
	}
	if p.IsSubscriber != nil {
		profile.IsSubscriber = *p.IsSubscriber
	}
	if p.HasAcceptedTerms != nil {
		profile.HasAcceptedTerms = *p.HasAcceptedTerms
	}
	if p.LastActiveAt != nil {
		at := p.LastActiveAt.UTC()
		profile.LastActiveAt = &at
	}
	return profile
}

var (
	validate    = newValidator()
	namePolicy  = bluemonday.StrictPolicy()
	fieldOrders = fieldOrder()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("avatar_url", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		u, err := url.Parse(raw)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
	return v
}

func fieldOrder() map[string]int {
	t := reflect.TypeOf(Patch{})
	order := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		order[name] = i
	}
	return order
}

// Normalize trims and sanitizes the patch, then validates it.
func (p Patch) Normalize() (Patch, error) {
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &email
	}
	if p.FullName != nil {
		name := sanitizeName(*p.FullName)
		p.FullName = &name
	}
	if p.AvatarURL != nil {
		avatar := strings.TrimSpace(*p.AvatarURL)
		p.AvatarURL = &avatar
	}
	if p.Role != nil {
		role := Role(strings.ToLower(strings.TrimSpace(string(*p.Role))))
		p.Role = &role
	}

	if err := validate.Struct(p); err != nil {
		return Patch{}, formatValidationErrors(err)
	}
	if p.Email != nil && *p.Email == "" {
		return Patch{}, &ValidationError{Message: "email cannot be empty", Fields: map[string]string{"email": "is required"}}
	}
	return p, nil
}

func sanitizeName(raw string) string {
	cleaned := html.UnescapeString(namePolicy.Sanitize(raw))
	return strings.Join(strings.Fields(cleaned), " ")
}

func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	fields := make(map[string]string, len(errs))
	names := make([]string, 0, len(errs))
	for _, fe := range errs {
		if _, seen := fields[fe.Field()]; !seen {
			names = append(names, fe.Field())
		}
		fields[fe.Field()] = validationMessage(fe)
	}
	sort.SliceStable(names, func(i, j int) bool {
		return fieldOrders[names[i]] < fieldOrders[names[j]]
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+fields[name])
	}
	return &ValidationError{Message: strings.Join(parts, "; "), Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "avatar_url":
		return "must be an http or https URL"
	}
	return "is invalid"
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
