// Package autherrors turns identity-provider failures into localized,
// user-facing title and description pairs.
package autherrors

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"saaskit/internal/supabase"
)

// Message is a user-facing error.
type Message struct {
	Title       string
	Description string
}

type entry struct {
	// key is matched as a message substring or an exact error code.
	key     string
	aliases []string
	text    map[string]Message
}

const (
	keyInvalidCredentials = "Invalid login credentials"
	keyTooManyRequests    = "Too many requests"
	keyInvalidEmail       = "Invalid email"
	keyNetwork            = "Network request failed"
)

var table = []entry{
	{key: keyInvalidCredentials, aliases: []string{"invalid_credentials", "invalid_grant"}, text: map[string]Message{
		"fr": {"Identifiants invalides", "L'email ou le mot de passe est incorrect. Veuillez réessayer."},
		"en": {"Invalid credentials", "The email or password is incorrect. Please try again."},
	}},
	{key: "User already registered", aliases: []string{"user_already_exists", "email_exists"}, text: map[string]Message{
		"fr": {"Compte existant", "Un utilisateur est déjà inscrit avec cette adresse email."},
		"en": {"Account exists", "A user is already registered with this email address."},
	}},
	{key: "Password should be at least 6 characters", aliases: []string{"weak_password"}, text: map[string]Message{
		"fr": {"Mot de passe trop court", "Le mot de passe doit contenir au moins 6 caractères."},
		"en": {"Password too short", "The password must contain at least 6 characters."},
	}},
	{key: "Email not confirmed", aliases: []string{"email_not_confirmed"}, text: map[string]Message{
		"fr": {"Email non confirmé", "Veuillez vérifier votre boîte de réception et confirmer votre email."},
		"en": {"Email not confirmed", "Please check your inbox and confirm your email."},
	}},
	{key: keyNetwork, text: map[string]Message{
		"fr": {"Erreur réseau", "Impossible de contacter le serveur. Vérifiez votre connexion internet."},
		"en": {"Network error", "Unable to reach the server. Check your internet connection."},
	}},
	{key: keyTooManyRequests, aliases: []string{"over_request_rate_limit", "over_query_limit"}, text: map[string]Message{
		"fr": {"Trop de tentatives", "Veuillez patienter un moment avant de réessayer."},
		"en": {"Too many attempts", "Please wait a moment before trying again."},
	}},
	{key: "Signup disabled", aliases: []string{"signup_disabled"}, text: map[string]Message{
		"fr": {"Inscriptions fermées", "Les nouvelles inscriptions sont temporairement désactivées."},
		"en": {"Signups closed", "New signups are temporarily disabled."},
	}},
	{key: "Rate limit exceeded", aliases: []string{"over_email_send_rate_limit"}, text: map[string]Message{
		"fr": {"Limite atteinte", "Vous avez effectué trop de tentatives. Veuillez réessayer plus tard."},
		"en": {"Limit reached", "You made too many attempts. Please try again later."},
	}},
	{key: "User not found", aliases: []string{"user_not_found"}, text: map[string]Message{
		"fr": {"Utilisateur introuvable", "Aucun compte n'est associé à cette adresse email."},
		"en": {"User not found", "No account is associated with this email address."},
	}},
	{key: keyInvalidEmail, aliases: []string{"email_address_invalid"}, text: map[string]Message{
		"fr": {"Email invalide", "Le format de l'adresse email n'est pas correct."},
		"en": {"Invalid email", "The email address format is not valid."},
	}},
	{key: "Database error saving next challenge", text: map[string]Message{
		"fr": {"Erreur de base de données", "Un problème est survenu lors de l'enregistrement de vos données. Veuillez réessayer."},
		"en": {"Database error", "Something went wrong while saving your data. Please try again."},
	}},
	{key: "anonymous_provider_disabled", text: map[string]Message{
		"fr": {"Connexion anonyme désactivée", "Les connexions anonymes ne sont pas autorisées sur cette application."},
		"en": {"Anonymous sign-in disabled", "Anonymous sign-ins are not allowed on this application."},
	}},
	{key: "Confirmation_token_not_found", aliases: []string{"otp_expired", "flow_state_expired"}, text: map[string]Message{
		"fr": {"Lien expiré", "Le lien de confirmation a expiré ou a déjà été utilisé."},
		"en": {"Link expired", "The confirmation link has expired or was already used."},
	}},
	{key: "Provider disabled", aliases: []string{"provider_disabled", "oauth_provider_not_supported"}, text: map[string]Message{
		"fr": {"Service indisponible", "La connexion via ce fournisseur (ex: Google) est actuellement désactivée."},
		"en": {"Service unavailable", "Signing in with this provider (e.g. Google) is currently disabled."},
	}},
}

var fallback = map[string]Message{
	"fr": {"Une erreur est survenue", "Une erreur inattendue s'est produite. Veuillez contacter le support si le problème persiste."},
	"en": {"Something went wrong", "An unexpected error occurred. Please contact support if the problem persists."},
}

// Translator resolves messages for one locale; unknown locales use French.
type Translator struct {
	locale string
}

// New returns a Translator for locale ("fr" or "en").
func New(locale string) Translator {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if _, ok := fallback[locale]; !ok {
		locale = "fr"
	}
	return Translator{locale: locale}
}

// Translate maps err to a user-facing message. Unrecognized errors get the
// generic title with the raw message as description.
func (t Translator) Translate(err error) Message {
	if err == nil {
		return Message{}
	}

	var status int
	var code, message string
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		status, code, message = apiErr.Status, apiErr.Code, apiErr.Message
	} else {
		message = err.Error()
	}

	if status == http.StatusTooManyRequests || code == "over_query_limit" || code == "over_request_rate_limit" {
		return t.lookup(keyTooManyRequests)
	}
	if apiErr == nil && isNetworkError(err) {
		return t.lookup(keyNetwork)
	}

	for _, e := range table {
		if strings.Contains(message, e.key) || code == e.key {
			return e.text[t.locale]
		}
		for _, alias := range e.aliases {
			if code == alias {
				return e.text[t.locale]
			}
		}
	}

	if strings.Contains(strings.ToLower(message), "email") {
		return t.lookup(keyInvalidEmail)
	}

	generic := fallback[t.locale]
	if message != "" {
		generic.Description = message
	}
	return generic
}

// Generic returns the fallback message with description.
func (t Translator) Generic(description string) Message {
	m := fallback[t.locale]
	if description != "" {
		m.Description = description
	}
	return m
}

func (t Translator) lookup(key string) Message {
	for _, e := range table {
		if e.key == key {
			return e.text[t.locale]
		}
	}
	return fallback[t.locale]
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
