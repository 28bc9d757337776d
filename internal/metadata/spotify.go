package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

const (
	// DefaultSpotifyBaseURL is the Spotify Web API root.
	DefaultSpotifyBaseURL = "https://api.spotify.com"

	// ScopeCurrentlyPlaying is the OAuth2 scope the probe needs.
	ScopeCurrentlyPlaying = "user-read-currently-playing"

	currentlyPlayingPath = "/v1/me/player/currently-playing"
	maxResponseBytes     = 1 << 20
)

// Credentials selects how the probe obtains bearer tokens. A refresh token
// takes precedence over a static access token.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string // Overrides the Spotify token endpoint when set.
}

// TokenSource builds an oauth2.TokenSource from the credentials. ctx governs
// the HTTP client used for token refreshes.
func (c Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	switch {
	case c.RefreshToken != "":
		if c.ClientID == "" || c.ClientSecret == "" {
			return nil, errors.New("a refresh token requires a client ID and secret")
		}
		cfg := &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     spotify.Endpoint,
			Scopes:       []string{ScopeCurrentlyPlaying},
		}
		if c.TokenURL != "" {
			cfg.Endpoint.TokenURL = c.TokenURL
		}
		return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}), nil
	case c.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: c.AccessToken,
			TokenType:   "Bearer",
		}), nil
	default:
		return nil, errors.New("no access token or refresh token configured")
	}
}

// SpotifyOption configures a SpotifyProbe.
type SpotifyOption func(*SpotifyProbe)

// WithBaseURL points the probe at another API root, such as a test server.
func WithBaseURL(u string) SpotifyOption {
	return func(p *SpotifyProbe) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTransport sets the round tripper underneath the OAuth2 transport.
func WithTransport(rt http.RoundTripper) SpotifyOption {
	return func(p *SpotifyProbe) {
		p.base = rt
	}
}

// WithMarket restricts results to an ISO 3166-1 alpha-2 market.
func WithMarket(market string) SpotifyOption {
	return func(p *SpotifyProbe) {
		p.market = market
	}
}

// SpotifyProbe queries the Spotify Web API for the user's current track.
type SpotifyProbe struct {
	baseURL string
	market  string
	base    http.RoundTripper
	client  *http.Client
}

var _ Probe = (*SpotifyProbe)(nil)

// NewSpotifyProbe creates a probe that authenticates with tokens from ts.
func NewSpotifyProbe(ts oauth2.TokenSource, opts ...SpotifyOption) *SpotifyProbe {
	p := &SpotifyProbe{
		baseURL: DefaultSpotifyBaseURL,
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   p.base,
		},
	}
	return p
}

func (p *SpotifyProbe) endpoint() string {
	q := url.Values{}
	q.Set("additional_types", "track,episode")
	if p.market != "" {
		q.Set("market", p.market)
	}
	return p.baseURL + currentlyPlayingPath + "?" + q.Encode()
}

// Poll performs one currently-playing query. No active device, a paused
// player and an empty item all report nothing playing.
func (p *SpotifyProbe) Poll(ctx context.Context) (*Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrProbeFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrProbeFailed, currentlyPlayingPath, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: GET %s: access token rejected (status %d)",
			ErrProbeFailed, currentlyPlayingPath, resp.StatusCode)
	case http.StatusTooManyRequests:
		limited := &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
		return nil, fmt.Errorf("%w: GET %s: %w", ErrProbeFailed, currentlyPlayingPath, limited)
	default:
		return nil, fmt.Errorf("%w: GET %s returned status %d",
			ErrProbeFailed, currentlyPlayingPath, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrProbeFailed, err)
	}
	return parseCurrentlyPlaying(body)
}

// RateLimitError reports a 429 response. RetryAfter is zero when the server
// sent no usable Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// parseRetryAfter reads a Retry-After value given either in seconds or as an
// HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now).Round(time.Second)
	}
	return 0
}

// parseCurrentlyPlaying extracts the track from a currently-playing body.
func parseCurrentlyPlaying(body []byte) (*Track, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response body", ErrProbeFailed)
	}

	fields := gjson.GetManyBytes(body,
		"is_playing",
		"item",
		"item.name",
		"item.artists.0.name",
		"item.show.name",
	)
	isPlaying, item, title, artist, show := fields[0], fields[1], fields[2], fields[3], fields[4]

	if !isPlaying.Bool() || !item.IsObject() || title.String() == "" {
		return nil, nil
	}

	t := &Track{Title: title.String(), Artist: artist.String()}
	if t.Artist == "" {
		t.Artist = show.String()
	}
	return t, nil
}
