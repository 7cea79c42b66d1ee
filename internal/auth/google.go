package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the portion of Google's userinfo/tokeninfo responses we care
// about. Google returns a larger object — we only unmarshal the fields we need.
//
// Userinfo docs: https://developers.google.com/identity/protocols/oauth2/openid-connect#obtaininguserprofileinformation
type GoogleUser struct {
	Sub     string `json:"sub"`     // Google's stable subject ID — never changes for an account
	Email   string `json:"email"`   // Verified email address
	Name    string `json:"name"`    // Display name, e.g. "Ada Lovelace"
	Picture string `json:"picture"` // Profile picture URL
}

// GoogleProvider wraps golang.org/x/oauth2 for Google sign-in.
//
// Two entry points, matching how the two client shapes authenticate:
//
//  1. AuthURL + Exchange — the classic server-side Authorization Code flow.
//     We redirect the browser to Google, Google redirects back with a code,
//     and we trade the code for the user's profile server-to-server. The
//     access token never touches the browser.
//
//  2. VerifyIDToken — for clients that run Google's own sign-in widget and
//     already hold an ID token. We validate it against Google's tokeninfo
//     endpoint and check the audience matches OUR client ID, so a token
//     minted for some other app can't log in here.
type GoogleProvider struct {
	config *oauth2.Config

	// http is the client used for the tokeninfo call in VerifyIDToken.
	// It carries a short timeout so a slow Google endpoint can't pin a
	// login request forever.
	http *http.Client
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// You get ClientID and ClientSecret from the Google Cloud console:
// APIs & Services → Credentials → "OAuth 2.0 Client IDs".
//
// callbackURL must exactly match one of the "Authorized redirect URIs"
// configured there. Example: "http://localhost:8080/auth/google/callback"
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint, // pre-defined Google OAuth endpoints
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is a random string we generate and store in a cookie before
// redirecting. When Google calls back, we verify the returned state matches
// our cookie. This prevents CSRF attacks where an attacker tricks your
// browser into completing an OAuth flow for their account.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the code flow: trades the authorization code for a
// Google user profile. This is the core of the callback handler.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Use the token to call Google's userinfo endpoint
//  3. Unmarshal the response into a GoogleUser struct
//
// The returned GoogleUser is used by the auth service to upsert the user in
// the database and then issue a session JWT.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that automatically adds
	// the "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.Sub == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid user (empty sub)")
	}

	return &gUser, nil
}

// tokenInfoURL is a var so tests can point VerifyIDToken at a local httptest
// server instead of Google.
var tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// VerifyIDToken validates a Google ID token obtained by a client-side sign-in
// widget and returns the profile it asserts.
//
// We delegate signature and expiry checks to Google's tokeninfo endpoint —
// it returns 400 for anything invalid or expired — and then verify the "aud"
// claim ourselves: the token must have been minted for OUR client ID,
// otherwise an ID token issued to any other Google app would be accepted here.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	endpoint := tokenInfoURL + "?id_token=" + url.QueryEscape(idToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building tokeninfo request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google rejected the ID token (status %d)", resp.StatusCode)
	}

	var claims struct {
		GoogleUser
		Aud string `json:"aud"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("auth: decoding tokeninfo response: %w", err)
	}

	if claims.Aud != p.config.ClientID {
		return nil, fmt.Errorf("auth: ID token audience mismatch")
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid user (empty sub)")
	}

	return &claims.GoogleUser, nil
}
