package scrapers

import (
	"context"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://apps8.chaco.gob.ar/sameepweb/servlet/"

	loginPage = "com.sameep.gamexamplelogin"
	homePage  = "com.sameep.wpseleccionarcliente"
)

// PortalConfig holds the settings of a portal session
type PortalConfig struct {
	UserID   string
	Password string
	BaseURL  string
	Headless bool

	ListingTimeout    time.Duration
	NavigationTimeout time.Duration
	PopupTimeout      time.Duration
	LoginTimeout      time.Duration
	// SettleDelay is slept after a page reports ready; the portal keeps
	// rendering grids for a moment after the load event.
	SettleDelay time.Duration
}

// DefaultPortalConfig returns the timings the portal is known to need
func DefaultPortalConfig() PortalConfig {
	return PortalConfig{
		BaseURL:           DefaultBaseURL,
		Headless:          true,
		ListingTimeout:    30 * time.Second,
		NavigationTimeout: 30 * time.Second,
		PopupTimeout:      15 * time.Second,
		LoginTimeout:      30 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

// LoginURL is the address of the login form
func (c *PortalConfig) LoginURL() string {
	return c.BaseURL + loginPage
}

// HomeURL is the account listing reached after login
func (c *PortalConfig) HomeURL() string {
	return c.BaseURL + homePage
}

// Browser is the browser automation capability the portal is driven with.
// Every call blocks until the action completes or its timeout elapses.
type Browser interface {
	// Navigate loads url in the current tab and waits for the body
	Navigate(ctx context.Context, url string) error
	// WaitVisible waits until selector matches a visible element
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitSettled waits for the document to finish loading
	WaitSettled(ctx context.Context, timeout time.Duration) error
	// HTML returns the rendered markup of the current page
	HTML(ctx context.Context) (string, error)
	// Click clicks the first element matching selector
	Click(ctx context.Context, selector string) error
	// ClickText clicks the nth element matching selector whose text or
	// value contains text. It reports whether such an element existed.
	ClickText(ctx context.Context, selector, text string, n int) (bool, error)
	// SendKeys types value into the element matching selector
	SendKeys(ctx context.Context, selector, value string) error
	// Attribute reads an attribute of the first element matching selector
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	// Back goes one entry back in history
	Back(ctx context.Context) error
	// Location returns the current URL
	Location(ctx context.Context) (string, error)
	// Cookies returns the cookies of the session
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	// Close shuts the browser down
	Close() error
}
