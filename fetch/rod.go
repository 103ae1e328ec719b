package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	quire "github.com/quireio/quire"
)

// Browser fetch errors.
var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
)

// settleDelay gives client-side frameworks a beat to render after load.
const settleDelay = 500 * time.Millisecond

// Browser fetches script-rendered pages with headless Chrome. The browser
// connects lazily on first fetch and is reused until Close.
type Browser struct {
	browser *rod.Browser
	timeout time.Duration
	stealth bool
}

// BrowserOption configures a Browser fetcher.
type BrowserOption func(*Browser)

// WithNavigateTimeout bounds page navigation and load.
func WithNavigateTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) { b.timeout = d }
}

// WithStealth opens pages with bot-detection evasion applied.
func WithStealth(on bool) BrowserOption {
	return func(b *Browser) { b.stealth = on }
}

// NewBrowser creates a Browser fetcher. Rod downloads Chromium on first run
// when no browser binary is found.
func NewBrowser(opts ...BrowserOption) *Browser {
	b := &Browser{timeout: defaultTimeout, stealth: true}
	for _, o := range opts {
		o(b)
	}
	return b
}

var _ quire.Fetcher = (*Browser)(nil)

// ensureBrowser lazily launches and connects.
func (b *Browser) ensureBrowser() error {
	if b.browser != nil {
		return nil
	}

	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b.browser = rod.New().ControlURL(u)
	if err := b.browser.Connect(); err != nil {
		b.browser = nil
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

// Close releases browser resources.
func (b *Browser) Close() error {
	if b.browser != nil {
		err := b.browser.Close()
		b.browser = nil
		return err
	}
	return nil
}

// Fetch navigates to the URL, waits for the page (including scripts) to
// load, and returns the rendered DOM as HTML.
func (b *Browser) Fetch(ctx context.Context, ref quire.SourceRef) (*quire.RawContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &quire.AcquisitionError{Kind: quire.AcquireTimeout, Source: ref.URL, Err: err}
	}
	if err := b.ensureBrowser(); err != nil {
		return nil, &quire.AcquisitionError{Kind: quire.AcquireBlocked, Source: ref.URL, Err: err}
	}

	page, err := b.newPage()
	if err != nil {
		return nil, &quire.AcquisitionError{Kind: quire.AcquireBlocked, Source: ref.URL, Err: err}
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(ref.URL); err != nil {
		return nil, classifyNavigate(ref.URL, navCtx, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, classifyNavigate(ref.URL, navCtx, err)
	}
	time.Sleep(settleDelay)

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, classifyNavigate(ref.URL, navCtx, err)
	}

	return &quire.RawContent{
		Bytes:               []byte(res.Value.Str()),
		DeclaredContentType: "text/html",
		FetchedAt:           time.Now(),
	}, nil
}

func (b *Browser) newPage() (*rod.Page, error) {
	if b.stealth {
		page, err := stealth.Page(b.browser)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
		}
		return page, nil
	}
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	return page, nil
}

func classifyNavigate(url string, ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &quire.AcquisitionError{Kind: quire.AcquireTimeout, Source: url, Err: err}
	}
	return &quire.AcquisitionError{Kind: quire.AcquireMalformed, Source: url, Err: err}
}
