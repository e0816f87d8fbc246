// Package guard decides what a protected page may show for the current
// authentication state.
package guard

import (
	"context"
	"errors"
	"fmt"
)

// Well-known application paths.
const (
	PathLanding   = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathDashboard = "/dashboard"
	PathSettings  = "/settings"
	PathBilling   = "/billing"
	PathAdmin     = "/admin"
	PathAdminUser = "/admin/users"
)

// Navigator moves the application to another path. It is passed in
// explicitly; nothing navigates through globals.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// View is the slice of auth state the guard looks at.
type View interface {
	IsLoading() bool
	HasUser() bool
	IsAdmin() bool
}

// Requirement is what a page needs from the viewer.
type Requirement int

const (
	RequireUser Requirement = iota
	RequireAdmin
)

// Decision is the guard outcome.
type Decision int

const (
	ShowLoading Decision = iota
	RedirectToLogin
	Render
	AccessDenied
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "loading"
	case RedirectToLogin:
		return "redirect"
	case Render:
		return "render"
	case AccessDenied:
		return "access_denied"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Decide maps state to a decision. Loading wins over everything, a missing
// user always redirects, and under-privileged users get a soft denial.
func Decide(v View, req Requirement) Decision {
	if v.IsLoading() {
		return ShowLoading
	}
	if !v.HasUser() {
		return RedirectToLogin
	}
	if req == RequireAdmin && !v.IsAdmin() {
		return AccessDenied
	}
	return Render
}

// Page renders protected content.
type Page func(ctx context.Context) error

// Screen draws the non-page states.
type Screen interface {
	Loading()
	AccessDenied(backPath string)
	Crashed(homePath string, err error)
}

// ErrPageCrashed is returned when a page panicked and the fallback was shown.
var ErrPageCrashed = errors.New("page crashed")

// Guard wraps pages with the authentication checks.
type Guard struct {
	nav    Navigator
	screen Screen
}

// New returns a Guard.
func New(nav Navigator, screen Screen) *Guard {
	return &Guard{nav: nav, screen: screen}
}

// Render runs page only when the decision is Render.
func (g *Guard) Render(ctx context.Context, v View, req Requirement, page Page) (Decision, error) {
	decision := Decide(v, req)
	switch decision {
	case ShowLoading:
		g.screen.Loading()
	case RedirectToLogin:
		g.nav.Navigate(PathLogin)
	case AccessDenied:
		g.screen.AccessDenied(PathDashboard)
	case Render:
		return decision, g.Boundary(page)(ctx)
	}
	return decision, nil
}

// RedirectIfAuthenticated sends signed-in users away from the login and
// register pages. It reports whether it navigated.
func (g *Guard) RedirectIfAuthenticated(v View) bool {
	if v.IsLoading() || !v.HasUser() {
		return false
	}
	g.nav.Navigate(PathDashboard)
	return true
}

// Boundary turns a panicking page into the fallback screen.
func (g *Guard) Boundary(page Page) Page {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				crash := fmt.Errorf("%w: %v", ErrPageCrashed, r)
				g.screen.Crashed(PathLanding, crash)
				err = crash
			}
		}()
		return page(ctx)
	}
}
