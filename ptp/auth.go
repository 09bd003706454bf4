package ptp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/s0up4200/ptpapi/apierr"
	"github.com/s0up4200/ptpapi/config"
)

const loginEndpoint = "ajax.php?action=login"

// StrategyKind names a login strategy.
type StrategyKind int

const (
	StrategyNone StrategyKind = iota
	StrategyAPIKey
	StrategyPassword
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyAPIKey:
		return "api-key"
	case StrategyPassword:
		return "password"
	default:
		return "none"
	}
}

// Strategy is a login strategy together with the credentials it was
// selected with. Build one with SelectStrategy.
type Strategy struct {
	Kind StrategyKind

	apiUser  string
	apiKey   string
	username string
	password string
	passkey  string
}

// SelectStrategy picks the login strategy for cfg without touching the
// network. API-key login wins when apiUser and apiKey are both set;
// otherwise username, password and passkey select password login.
func SelectStrategy(cfg *config.Config) (Strategy, error) {
	if cfg.Has(config.APIAuthKeys...) {
		apiUser, _ := cfg.GetString(config.KeyAPIUser)
		apiKey, _ := cfg.GetString(config.KeyAPIKey)
		passkey, _ := cfg.GetString(config.KeyPasskey)
		return Strategy{
			Kind:    StrategyAPIKey,
			apiUser: apiUser,
			apiKey:  apiKey,
			passkey: passkey,
		}, nil
	}

	if cfg.Has(config.PasswordAuthKeys...) {
		username, _ := cfg.GetString(config.KeyUsername)
		password, _ := cfg.GetString(config.KeyPassword)
		passkey, _ := cfg.GetString(config.KeyPasskey)
		return Strategy{
			Kind:     StrategyPassword,
			username: username,
			password: password,
			passkey:  passkey,
		}, nil
	}

	return Strategy{}, apierr.Authentication("login", "no valid authentication method found", 0, nil)
}

// loginResponse is the success body of ajax.php?action=login.
type loginResponse struct {
	Result  string `json:"Result"`
	AuthKey string `json:"authKey"`
}

// execute runs the login exchange. It is not rate limited.
func (s Strategy) execute(ctx context.Context, c *Client) (Session, error) {
	op := "login (" + s.Kind.String() + ")"

	var body io.Reader
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	switch s.Kind {
	case StrategyAPIKey:
		// The passkey is needed for downloads, so login fails without it.
		if s.passkey == "" {
			return Session{}, apierr.ConfigValidation(string(config.KeyPasskey))
		}
		header.Set("ApiUser", s.apiUser)
		header.Set("ApiKey", s.apiKey)
	case StrategyPassword:
		form := url.Values{}
		form.Set("username", s.username)
		form.Set("password", s.password)
		form.Set("passkey", s.passkey)
		form.Set("keeplogged", "1")
		body = strings.NewReader(form.Encode())
	default:
		return Session{}, apierr.Authentication(op, "no valid authentication method found", 0, nil)
	}

	endpoint, err := c.resolveURL(loginEndpoint, nil)
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Session{}, apierr.Transport(op, err)
	}
	req.Header = header
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, apierr.Transport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, apierr.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, apierr.Authentication(op, "login rejected", resp.StatusCode, decodeBody(data))
	}

	if payload := upstreamPayload(data); payload != nil {
		return Session{}, apierr.Authentication(op, payload.Error, resp.StatusCode, payload)
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return Session{}, apierr.Authentication(op, "malformed login response", resp.StatusCode, decodeBody(data))
	}

	cookies := make([]string, 0, len(resp.Cookies()))
	for _, ck := range resp.Cookies() {
		cookies = append(cookies, ck.Name+"="+ck.Value)
	}

	return Session{
		Token:         lr.AuthKey,
		Passkey:       s.passkey,
		Cookies:       cookies,
		Strategy:      s.Kind,
		EstablishedAt: c.now(),
	}, nil
}

// Login establishes a session. Concurrent calls share one login exchange,
// run with the context of the first caller.
func (c *Client) Login(ctx context.Context) error {
	_, err, shared := c.loginGroup.Do("login", func() (any, error) {
		return nil, c.login(ctx)
	})
	if shared {
		c.logger.Trace().Msg("Joined in-flight login")
	}
	return err
}

func (c *Client) login(ctx context.Context) error {
	strategy, err := SelectStrategy(c.cfg)
	if err != nil {
		return err
	}

	c.session.beginLogin()
	start := time.Now()
	session, err := strategy.execute(ctx, c)
	c.session.endLogin(session, err == nil)

	c.metrics.observeLogin(strategy.Kind, err)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("strategy", strategy.Kind.String()).
			Msg("Login failed")
		return err
	}

	c.logger.Info().
		Str("strategy", strategy.Kind.String()).
		Int("cookies", len(session.Cookies)).
		Dur("duration", time.Since(start)).
		Msg("Logged in to PassThePopcorn")

	return nil
}

// Logout forgets the current session. Nothing is sent to the tracker.
func (c *Client) Logout() {
	c.session.reset()
}

// State returns the current authentication state.
func (c *Client) State() State {
	return c.session.state()
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	s := c.session.current()
	s.Cookies = append([]string(nil), s.Cookies...)
	return s
}
