package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"saaskit/internal/authstate"
	"saaskit/internal/notify"
	"saaskit/internal/profiles"
)

// Builder creates the App for one command run.
type Builder func(ctx context.Context) (*App, error)

// NewRootCommand assembles saasctl. build runs only when a command
// executes, so help output never needs configuration.
func NewRootCommand(build Builder) *cobra.Command {
	var out string

	root := &cobra.Command{
		Use:           "saasctl",
		Short:         "Client en ligne de commande pour saaskit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if out != "text" && out != "json" {
				return fmt.Errorf("--out must be text or json, got %q", out)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&out, "out", "text", "Format de sortie : text|json")

	run := func(fn func(ctx context.Context, a *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			a.jsonOut = out == "json"
			return fn(cmd.Context(), a, cmd, args)
		}
	}

	var email, password string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Se connecter avec email et mot de passe",
		RunE: run(func(ctx context.Context, a *App, cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrStdin(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.Login(ctx, email, pw)
		}),
	}
	loginCmd.Flags().StringVar(&email, "email", "", "Adresse email")
	loginCmd.Flags().StringVar(&password, "password", "", "Mot de passe (lu sur l'entrée standard si absent)")
	_ = loginCmd.MarkFlagRequired("email")

	var regEmail, regPassword string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Créer un compte",
		RunE: run(func(ctx context.Context, a *App, cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrStdin(regPassword, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.Register(ctx, regEmail, pw)
		}),
	}
	registerCmd.Flags().StringVar(&regEmail, "email", "", "Adresse email")
	registerCmd.Flags().StringVar(&regPassword, "password", "", "Mot de passe (lu sur l'entrée standard si absent)")
	_ = registerCmd.MarkFlagRequired("email")

	var oauthProvider string
	oauthCmd := &cobra.Command{
		Use:   "login-oauth",
		Short: "Se connecter via un fournisseur OAuth",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.LoginOAuth(ctx, oauthProvider)
		}),
	}
	oauthCmd.Flags().StringVar(&oauthProvider, "provider", "google", "Fournisseur OAuth")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Se déconnecter",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.Logout(ctx)
		}),
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Afficher la session courante",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.Whoami(ctx)
		}),
	}

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Tableau de bord",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.Dashboard(ctx)
		}),
	}

	var fullName string
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Paramètres du profil",
		RunE: run(func(ctx context.Context, a *App, cmd *cobra.Command, _ []string) error {
			var name *string
			if cmd.Flags().Changed("full-name") {
				name = &fullName
			}
			return a.Settings(ctx, name)
		}),
	}
	settingsCmd.Flags().StringVar(&fullName, "full-name", "", "Nouveau nom complet")

	billingCmd := &cobra.Command{
		Use:   "billing",
		Short: "Abonnement",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.Billing(ctx)
		}),
	}

	termsCmd := &cobra.Command{
		Use:   "accept-terms",
		Short: "Accepter les conditions d'utilisation",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.AcceptTerms(ctx)
		}),
	}

	root.AddCommand(loginCmd, registerCmd, oauthCmd, logoutCmd, whoamiCmd, dashboardCmd, settingsCmd, billingCmd, termsCmd)
	root.AddCommand(newAdminCommand(run))
	return root
}

type runner func(fn func(ctx context.Context, a *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newAdminCommand(run runner) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration (rôle admin requis)",
	}

	var role, search string
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Lister les utilisateurs",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			filter, err := profiles.ParseRoleFilter(role)
			if err != nil {
				return err
			}
			return a.AdminUsers(ctx, profiles.FilterOptions{Role: filter, Search: search})
		}),
	}
	usersCmd.Flags().StringVar(&role, "role", "all", "Filtre de rôle : all|user|admin")
	usersCmd.Flags().StringVar(&search, "search", "", "Recherche par email ou nom")

	toggleRoleCmd := &cobra.Command{
		Use:   "toggle-role ID",
		Short: "Basculer le rôle user/admin",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.AdminToggleRole(ctx, id)
		}),
	}

	toggleSubCmd := &cobra.Command{
		Use:   "toggle-subscriber ID",
		Short: "Basculer le statut d'abonné",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.AdminToggleSubscriber(ctx, id)
		}),
	}

	var confirm string
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Supprimer un utilisateur",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.AdminDelete(ctx, id, confirm)
		}),
	}
	deleteCmd.Flags().StringVar(&confirm, "confirm", "", "Tapez DELETE pour confirmer")

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Statistiques d'inscription",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.AdminMetrics(ctx)
		}),
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Exporter les profils en CSV",
		RunE: run(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				return a.AdminExport(ctx, a.out)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := a.AdminExport(ctx, f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		}),
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Fichier de sortie (stdout par défaut)")

	adminCmd.AddCommand(usersCmd, toggleRoleCmd, toggleSubCmd, deleteCmd, metricsCmd, exportCmd)
	return adminCmd
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func passwordOrStdin(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	raw, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(string(raw), "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func (a *App) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) notifySuccess(title, description string) {
	a.notifier.Notify(notify.Notification{Variant: notify.Default, Title: title, Description: description})
}

func hasUser(s authstate.State) bool { return s.HasUser() }
