package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const defaultActionTimeout = 30 * time.Second

// ChromeBrowser drives a local Chrome through chromedp
type ChromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logrus.FieldLogger
}

// NewChromeBrowser starts Chrome and opens one tab. Any failure to bring
// the browser up is reported as a launch error.
func NewChromeBrowser(cfg *PortalConfig, logger logrus.FieldLogger) (Browser, error) {
	logger = logger.WithField("component", "browser")
	logger.Info("Initializing browser...")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)

	if cfg.Headless {
		logger.Info("Running in HEADLESS mode")
	} else {
		logger.Info("Running in VISIBLE mode")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	b := &ChromeBrowser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}

	// The first Run starts the browser process.
	if err := chromedp.Run(ctx); err != nil {
		b.Close()
		return nil, Launch(err)
	}

	// The legacy portal raises alert() boxes after some postbacks; they
	// block every further action until dismissed.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			logger.Infof("Dialog: %s", e.Message)
			go chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
		}
	})

	logger.Info("Browser initialized")
	return b, nil
}

// run executes actions in the tab, bounded by timeout and by the caller's ctx.
func (b *ChromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	b.logger.Debugf("Navigating to %s", url)
	if err := b.run(ctx, defaultActionTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (b *ChromeBrowser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *ChromeBrowser) WaitSettled(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var state string
		err := b.run(ctx, 5*time.Second, chromedp.Evaluate(`document.readyState`, &state))
		if err == nil && state == "complete" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("page not settled after %s (state %q): %w", timeout, state, context.DeadlineExceeded)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, defaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return html, nil
}

func (b *ChromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, defaultActionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (b *ChromeBrowser) ClickText(ctx context.Context, selector, text string, n int) (bool, error) {
	sel, _ := json.Marshal(selector)
	txt, _ := json.Marshal(text)
	script := fmt.Sprintf(`
		(function(sel, text, n) {
			var els = document.querySelectorAll(sel);
			var k = 0;
			for (var i = 0; i < els.length; i++) {
				var t = (els[i].textContent || els[i].value || '').trim();
				if (t.indexOf(text) >= 0) {
					if (k === n) {
						els[i].click();
						return true;
					}
					k++;
				}
			}
			return false;
		})(%s, %s, %d)
	`, sel, txt, n)

	var found bool
	if err := b.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (b *ChromeBrowser) SendKeys(ctx context.Context, selector, value string) error {
	return b.run(ctx, defaultActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (b *ChromeBrowser) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	if err := b.run(ctx, defaultActionTimeout, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (b *ChromeBrowser) Back(ctx context.Context) error {
	return b.run(ctx, defaultActionTimeout, chromedp.NavigateBack())
}

func (b *ChromeBrowser) Location(ctx context.Context) (string, error) {
	var loc string
	if err := b.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (b *ChromeBrowser) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	if err := b.run(ctx, defaultActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out, nil
}

// Close cleans up resources
func (b *ChromeBrowser) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}
