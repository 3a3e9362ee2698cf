package scrapers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sameep-scrape/model"
)

const (
	popupFrame = `iframe#gxp0_ifrm`
	popupClose = `#gxp0_cls`
)

// DocumentRef is a short lived, session scoped reference to a document
type DocumentRef struct {
	URL               string
	SuggestedFilename string
}

// CaptureDocument clicks the row's trigger and reads the document reference
// out of the popup frame it opens.
//
// Rows without a visible trigger return nil without any click. A popup that
// never shows up is logged and also returns nil; only a failed click on an
// existing trigger is an error.
func (p *SameepPortal) CaptureDocument(ctx context.Context, row RawRow) (*DocumentRef, error) {
	if !row.HasDocument() {
		return nil, nil
	}
	log := p.Logger.WithField("invoice", row.InvoiceNumber())

	if err := p.Browser.Click(ctx, fmt.Sprintf(`img[id="%s"]`, row.TriggerID)); err != nil {
		return nil, NavigationTimeout("click document trigger", err)
	}

	if err := p.Browser.WaitVisible(ctx, popupFrame, p.Config.PopupTimeout); err != nil {
		log.Warnf("Document popup did not appear: %v", err)
		return nil, nil
	}

	src, ok, err := p.Browser.Attribute(ctx, popupFrame, "src")
	p.closePopup(ctx)
	if err != nil || !ok || src == "" {
		log.Warnf("Document popup has no source (err=%v)", err)
		return nil, nil
	}

	full, err := resolveReference(p.Config.BaseURL, src)
	if err != nil {
		log.Warnf("Cannot resolve document reference %q: %v", src, err)
		return nil, nil
	}

	log.Debugf("Captured document reference %s", full)
	return &DocumentRef{
		URL:               full,
		SuggestedFilename: model.SuggestedFilename(row.InvoiceNumber()),
	}, nil
}

func (p *SameepPortal) closePopup(ctx context.Context) {
	if err := p.Browser.Click(ctx, popupClose); err != nil {
		p.Logger.Warnf("Could not close document popup: %v", err)
	}
}

// resolveReference resolves a popup frame source against the portal base
func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
