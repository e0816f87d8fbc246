package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// OAuthTimeout bounds how long login-oauth waits for the provider callback.
var OAuthTimeout = 3 * time.Minute

type callback struct {
	code string
	err  error
}

// LoginOAuth runs a PKCE sign-in: it serves the redirect URL locally, prints
// the provider link and exchanges the returned code.
func (a *App) LoginOAuth(ctx context.Context, provider string) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if a.guard.RedirectIfAuthenticated(state) {
		return nil
	}

	redirect, err := url.Parse(a.redirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("invalid redirect url %q", a.redirectURL)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen for oauth callback: %w", err)
	}
	// Port 0 picks a free port; the redirect must name the real one.
	redirect.Host = ln.Addr().String()

	results := make(chan callback, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath(redirect), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callback{code: q.Get("code")}
		if msg := firstNonEmpty(q.Get("error_description"), q.Get("error")); msg != "" {
			res = callback{err: errors.New(msg)}
		} else if res.code == "" {
			res = callback{err: errors.New("missing authorization code")}
		}
		select {
		case results <- res:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "La connexion a échoué. Vous pouvez fermer cette fenêtre.")
			return
		}
		fmt.Fprintln(w, "Connexion réussie. Vous pouvez fermer cette fenêtre.")
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("oauth callback server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authorizeURL, verifier := a.provider.AuthorizeURL(provider, redirect.String())
	fmt.Fprintln(a.out, "Ouvrez ce lien dans votre navigateur pour continuer :")
	fmt.Fprintf(a.out, "  %s\n", authorizeURL)
	if a.openURL != nil {
		a.openURL(authorizeURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, OAuthTimeout)
	defer cancel()

	var res callback
	select {
	case res = <-results:
	case <-waitCtx.Done():
		return fmt.Errorf("waiting for oauth callback: %w", waitCtx.Err())
	}
	if res.err != nil {
		a.notifyError(res.err)
		return res.err
	}

	if _, err := a.sessions.CompleteOAuth(ctx, res.code, verifier); err != nil {
		a.notifyError(err)
		return err
	}
	a.notifySuccess("Bon retour !", "Connexion réussie.")
	return a.land(ctx)
}

func callbackPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
