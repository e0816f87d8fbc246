package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"saaskit/internal/authstate"
	"saaskit/internal/guard"
	"saaskit/internal/profiles"
	"saaskit/internal/terms"
)

// Login signs in with a password and lands on the dashboard.
func (a *App) Login(ctx context.Context, email, password string) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if a.guard.RedirectIfAuthenticated(state) {
		return nil
	}

	if _, err := a.sessions.SignIn(ctx, email, password); err != nil {
		a.notifyError(err)
		return err
	}
	a.notifySuccess("Bon retour !", "Connexion réussie.")
	return a.land(ctx)
}

// Register creates an account. Without an immediate session the user must
// confirm their email first.
func (a *App) Register(ctx context.Context, email, password string) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if a.guard.RedirectIfAuthenticated(state) {
		return nil
	}

	s, err := a.sessions.SignUp(ctx, email, password, a.redirectURL)
	if err != nil {
		a.notifyError(err)
		return err
	}
	a.notifySuccess("Compte créé", "Veuillez vérifier vos emails pour confirmer votre inscription.")
	if s == nil {
		return nil
	}
	return a.land(ctx)
}

// land waits for the signed-in state to settle, then navigates to the dashboard.
func (a *App) land(ctx context.Context) error {
	if _, err := a.waitFor(ctx, hasUser); err != nil {
		return fmt.Errorf("waiting for profile: %w", err)
	}
	a.nav.Navigate(guard.PathDashboard)
	return nil
}

// Logout ends the session; the auth context navigates to the login page.
func (a *App) Logout(ctx context.Context) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if !state.HasUser() {
		fmt.Fprintln(a.out, "Aucune session active.")
		return nil
	}
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	_, err = a.waitFor(ctx, func(s authstate.State) bool { return !s.HasUser() })
	return err
}

type whoami struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Provider    string    `json:"provider"`
	Phase       string    `json:"phase"`
	Role        string    `json:"role,omitempty"`
	Placeholder bool      `json:"placeholder"`
	ProfileErr  string    `json:"profile_error,omitempty"`
}

// Whoami prints the current user and profile state.
func (a *App) Whoami(ctx context.Context) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if !state.HasUser() {
		fmt.Fprintln(a.out, "Non connecté.")
		return nil
	}

	w := whoami{
		ID:          state.User.ID,
		Email:       state.User.Email,
		Provider:    state.User.Provider(),
		Phase:       state.Phase().String(),
		Placeholder: state.Profile.IsPlaceholder(),
	}
	if p := state.CurrentProfile(); p != nil {
		w.Role = string(p.Role)
	}
	if state.ProfileErr != nil {
		w.ProfileErr = state.ProfileErr.Error()
	}
	if a.jsonOut {
		return a.printJSON(w)
	}

	fmt.Fprintf(a.out, "%s (%s)\n", w.Email, w.ID)
	fmt.Fprintf(a.out, "  fournisseur : %s\n", w.Provider)
	fmt.Fprintf(a.out, "  état        : %s\n", w.Phase)
	if w.Role != "" {
		fmt.Fprintf(a.out, "  rôle        : %s\n", w.Role)
	}
	if w.Placeholder {
		fmt.Fprintln(a.out, "  profil en cours de création")
	}
	if w.ProfileErr != "" {
		fmt.Fprintf(a.out, "  erreur profil : %s\n", w.ProfileErr)
	}
	return nil
}

// Dashboard renders the signed-in landing page.
func (a *App) Dashboard(ctx context.Context) error {
	return a.page(ctx, guard.RequireUser, func(context.Context) error {
		p := a.auth.Snapshot().CurrentProfile()
		if p == nil {
			return errors.New("profile unavailable")
		}
		fmt.Fprintf(a.out, "Bienvenue, %s\n", p.DisplayName())
		fmt.Fprintf(a.out, "  rôle       : %s\n", p.Role)
		fmt.Fprintf(a.out, "  abonnement : %s\n", subscriptionLabel(p.IsSubscriber))
		if p.IsAdmin() {
			fmt.Fprintln(a.out, "  administration : saasctl admin users")
		}
		return nil
	})
}

// Settings shows the profile and optionally renames it.
func (a *App) Settings(ctx context.Context, fullName *string) error {
	return a.page(ctx, guard.RequireUser, func(ctx context.Context) error {
		p := a.auth.Snapshot().CurrentProfile()
		if p == nil {
			return errors.New("profile unavailable")
		}
		if fullName != nil {
			updated, err := a.profiles.Update(ctx, p.ID, profiles.Patch{FullName: fullName})
			if err != nil {
				a.notifyError(err)
				return err
			}
			a.auth.ReloadProfile()
			a.notifySuccess("Profil mis à jour", "Vos informations ont été enregistrées.")
			p = &updated
		}

		if a.jsonOut {
			return a.printJSON(p)
		}
		fmt.Fprintf(a.out, "Email      : %s\n", p.Email)
		fmt.Fprintf(a.out, "Nom        : %s\n", p.DisplayName())
		fmt.Fprintf(a.out, "Rôle       : %s\n", p.Role)
		fmt.Fprintf(a.out, "Inscrit le : %s\n", p.CreatedAt.Format(time.DateOnly))
		return nil
	})
}

// Billing shows the subscription status.
func (a *App) Billing(ctx context.Context) error {
	return a.page(ctx, guard.RequireUser, func(context.Context) error {
		p := a.auth.Snapshot().CurrentProfile()
		if p == nil {
			return errors.New("profile unavailable")
		}
		fmt.Fprintf(a.out, "Abonnement : %s\n", subscriptionLabel(p.IsSubscriber))
		if !p.IsSubscriber {
			fmt.Fprintln(a.out, "Passez à l'offre Pro pour débloquer toutes les fonctionnalités.")
		}
		return nil
	})
}

// AcceptTerms accepts the terms of use for the signed-in user.
func (a *App) AcceptTerms(ctx context.Context) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if !state.HasUser() {
		a.nav.Navigate(guard.PathLogin)
		fmt.Fprintln(a.out, "Vous devez être connecté : saasctl login")
		return nil
	}
	if a.terms.Visibility() == terms.Hidden {
		fmt.Fprintln(a.out, "Conditions d'utilisation déjà acceptées.")
		return nil
	}
	return a.terms.Accept(ctx)
}

// AdminUsers lists profiles matching opts.
func (a *App) AdminUsers(ctx context.Context, opts profiles.FilterOptions) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		list, err := a.admin.Filter(ctx, opts)
		if err != nil {
			return err
		}
		if a.jsonOut {
			return a.printJSON(list)
		}
		return writeProfileTable(a.out, list)
	})
}

// AdminToggleRole flips the role of the user with id.
func (a *App) AdminToggleRole(ctx context.Context, id uuid.UUID) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		p, err := a.findProfile(ctx, id)
		if err != nil {
			return err
		}
		updated, err := a.admin.ToggleRole(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s : %s\n", updated.Email, updated.Role)
		return nil
	})
}

// AdminToggleSubscriber flips the subscription flag of the user with id.
func (a *App) AdminToggleSubscriber(ctx context.Context, id uuid.UUID) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		p, err := a.findProfile(ctx, id)
		if err != nil {
			return err
		}
		updated, err := a.admin.ToggleSubscriber(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s : %s\n", updated.Email, subscriptionLabel(updated.IsSubscriber))
		return nil
	})
}

// AdminDelete removes a user once confirmation matches.
func (a *App) AdminDelete(ctx context.Context, id uuid.UUID, confirmation string) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		return a.admin.DeleteUser(ctx, id, confirmation)
	})
}

// AdminMetrics prints signup counts and the growth series.
func (a *App) AdminMetrics(ctx context.Context) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		m, err := a.admin.Metrics(ctx, a.now())
		if err != nil {
			return err
		}
		if a.jsonOut {
			return a.printJSON(m)
		}

		fmt.Fprintf(a.out, "Utilisateurs : %d (admins %d, abonnés %d)\n", m.Totals.Total, m.Totals.Admins, m.Totals.Subscribers)
		fmt.Fprintf(a.out, "Inscriptions : aujourd'hui %d, 7 jours %d, cette semaine %d, ce mois %d\n",
			m.Signups.Today, m.Signups.Week, m.Signups.ThisWeek, m.Signups.ThisMonth)
		fmt.Fprintf(a.out, "Croissance sur %d jours :\n", profiles.GrowthWindowDays)
		for _, point := range m.Growth {
			fmt.Fprintf(a.out, "  %s %3d %s\n", point.Date, point.Count, bar(point.Count))
		}
		return nil
	})
}

// AdminExport writes every profile as CSV to w.
func (a *App) AdminExport(ctx context.Context, w io.Writer) error {
	return a.page(ctx, guard.RequireAdmin, func(ctx context.Context) error {
		return a.admin.ExportCSV(ctx, w)
	})
}

func (a *App) findProfile(ctx context.Context, id uuid.UUID) (profiles.Profile, error) {
	list, err := a.admin.ListProfiles(ctx)
	if err != nil {
		return profiles.Profile{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return profiles.Profile{}, fmt.Errorf("user %s: %w", id, profiles.ErrNotFound)
}

func writeProfileTable(out io.Writer, list []profiles.Profile) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNOM\tRÔLE\tABONNÉ\tCGU\tINSCRIT\tACTIF")
	for _, p := range list {
		active := "-"
		if p.LastActiveAt != nil {
			active = p.LastActiveAt.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Email, p.DisplayName(), p.Role,
			yesNo(p.IsSubscriber), yesNo(p.HasAcceptedTerms),
			p.CreatedAt.Format(time.DateOnly), active)
	}
	fmt.Fprintf(tw, "\n%d utilisateur(s)\n", len(list))
	return tw.Flush()
}

func subscriptionLabel(active bool) string {
	if active {
		return "Pro (actif)"
	}
	return "Gratuit"
}

func yesNo(v bool) string {
	if v {
		return "oui"
	}
	return "non"
}

func bar(n int) string {
	return strings.Repeat("#", min(n, 40))
}
