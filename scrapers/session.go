package scrapers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	userField     = `input[placeholder="Nombre de usuario"]`
	passwordField = `input[placeholder="Contraseña"]`
	loginButtons  = `input[type="button"], input[type="submit"], button`
	loginButton   = "Iniciar Sesion"

	locationPoll = 500 * time.Millisecond
)

// Launcher starts a browser for a session
type Launcher func(cfg *PortalConfig, logger logrus.FieldLogger) (Browser, error)

// Session owns one authenticated browser session. The cookie jar lives as
// long as the browser; there is no logout.
type Session struct {
	Config  *PortalConfig
	Browser Browser
	Logger  logrus.FieldLogger
}

// Open launches a browser and returns a session around it
func Open(cfg *PortalConfig, logger logrus.FieldLogger, launch Launcher) (*Session, error) {
	if launch == nil {
		launch = NewChromeBrowser
	}
	b, err := launch(cfg, logger)
	if err != nil {
		if KindOf(err) == KindLaunch {
			return nil, err
		}
		return nil, Launch(err)
	}
	return &Session{
		Config:  cfg,
		Browser: b,
		Logger:  logger.WithField("component", "session"),
	}, nil
}

// Login submits the credentials and waits for the account listing
func (s *Session) Login(ctx context.Context) error {
	if s.Config.UserID == "" || s.Config.Password == "" {
		return LoginError(LoginCredentialsMissing, "user and password are required", nil)
	}

	s.Logger.Infof("Navigating to %s", s.Config.LoginURL())
	if err := s.Browser.Navigate(ctx, s.Config.LoginURL()); err != nil {
		return LoginError(LoginTimeout, "login page", err)
	}

	s.Logger.Infof("Filling credentials for user: %s", s.Config.UserID)
	if err := s.Browser.SendKeys(ctx, userField, s.Config.UserID); err != nil {
		return LoginError(LoginTimeout, "user field", err)
	}
	if err := s.Browser.SendKeys(ctx, passwordField, s.Config.Password); err != nil {
		return LoginError(LoginTimeout, "password field", err)
	}

	s.Logger.Info("Clicking login button...")
	found, err := s.Browser.ClickText(ctx, loginButtons, loginButton, 0)
	if err != nil {
		return LoginError(LoginTimeout, "login button", err)
	}
	if !found {
		return LoginError(LoginUnexpectedRedirect, "login button not found", nil)
	}

	loc, err := s.waitLocation(ctx, homePage, s.Config.LoginTimeout)
	if err != nil {
		if loc == "" || strings.Contains(loc, loginPage) {
			return LoginError(LoginTimeout, "waiting for account listing", err)
		}
		return LoginError(LoginUnexpectedRedirect, loc, err)
	}

	s.Logger.Info("Login completed!")
	return nil
}

// waitLocation polls the current URL until it contains marker
func (s *Session) waitLocation(ctx context.Context, marker string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var loc string
	for {
		current, err := s.Browser.Location(ctx)
		if err == nil {
			loc = current
			if strings.Contains(loc, marker) {
				return loc, nil
			}
		}
		if time.Now().After(deadline) {
			return loc, errors.New("timed out waiting for " + marker)
		}
		select {
		case <-time.After(locationPoll):
		case <-ctx.Done():
			return loc, ctx.Err()
		}
	}
}

// ReturnHome goes straight to the account listing
func (s *Session) ReturnHome(ctx context.Context) error {
	s.Logger.Debug("Returning to account listing")
	if err := s.Browser.Navigate(ctx, s.Config.HomeURL()); err != nil {
		return NavigationTimeout("return home", err)
	}
	s.settle(ctx)
	return nil
}

// settle waits for the page to finish loading. Timing out is not an error:
// callers re-check the page structure afterwards.
func (s *Session) settle(ctx context.Context) {
	if err := s.Browser.WaitSettled(ctx, s.Config.NavigationTimeout); err != nil {
		s.Logger.Warnf("Page did not settle: %v", err)
	}
	if s.Config.SettleDelay > 0 {
		select {
		case <-time.After(s.Config.SettleDelay):
		case <-ctx.Done():
		}
	}
}

// Close shuts the browser down
func (s *Session) Close() error {
	return s.Browser.Close()
}
