package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const landingHTML = `<html><body>
<table>
  <tr><th>Cliente</th><th></th></tr>
  <tr><td>PEREZ JUAN</td><td><span id="span_vINGRESAR_0001"><a href="#">Ingresar</a></span></td></tr>
  <tr><td>GOMEZ ANA</td><td><span id="span_vINGRESAR_0002"><a href="#">Ingresar</a></span></td></tr>
  <tr><td>LOPEZ SRL</td><td><span id="span_vINGRESAR_0003"><a href="#">Ingresar</a></span></td></tr>
</table>
</body></html>`

const accountHTML = `<html><body>
<table><tr><td>Cliente</td><td>Apellido y Nombre: PEREZ JUAN CARLOS</td></tr></table>
<table>
  <tr><th>a</th><th>b</th><th>c</th><th>Suministro</th><th>e</th><th>Calle</th><th>Nro</th><th>Piso</th><th></th></tr>
  <tr><td></td><td></td><td></td><td>1</td><td></td><td>AV. SARMIENTO</td><td>1200</td><td>PB</td><td><a href="#">Saldo</a></td></tr>
  <tr><td></td><td></td><td></td><td>2</td><td></td><td>CALLE 9</td><td>45</td><td></td><td><a href="#">Saldo</a></td></tr>
  <tr><td>short row</td></tr>
</table>
</body></html>`

type statementRow struct {
	invoice string
	trigger string
}

func statementHTML(rows ...statementRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tr><td>h0</td></tr></table><table><tr><td>h1</td></tr></table><table><tr><td>h2</td></tr></table>`)
	b.WriteString(`<table><tr>`)
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "<th>c%d</th>", i)
	}
	b.WriteString(`</tr>`)
	for _, r := range rows {
		b.WriteString(`<tr>`)
		cells := []string{"", r.invoice, "23/06/2025", "06/2025", "61141", "FACTURA B", "0001", "B", "84919364",
			"15/07/2025", "25/07/2025", "37.741,29", "120,00", "37.861,29", r.trigger}
		for _, c := range cells {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`<tr><td>too</td><td>short</td></tr>`)
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// fakeBrowser serves canned pages and records every interaction
type fakeBrowser struct {
	pages    map[string]string
	current  string
	location string

	visible   map[string]bool
	attrs     map[string]string
	clickText map[string]string // link text -> page it leads to

	clicks     []string
	textClicks []string
	waits      []string
	keys       map[string]string
	backs      int
	closed     bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:     map[string]string{},
		visible:   map[string]bool{},
		attrs:     map[string]string{},
		clickText: map[string]string{},
		keys:      map[string]string{},
	}
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.location = url
	for key := range f.pages {
		if strings.HasSuffix(url, key) {
			f.current = key
		}
	}
	return nil
}

func (f *fakeBrowser) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	f.waits = append(f.waits, selector)
	if f.visible[selector] {
		return nil
	}
	return context.DeadlineExceeded
}

func (f *fakeBrowser) WaitSettled(context.Context, time.Duration) error { return nil }

func (f *fakeBrowser) HTML(context.Context) (string, error) {
	html, ok := f.pages[f.current]
	if !ok {
		return "", errors.New("no page loaded")
	}
	return html, nil
}

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeBrowser) ClickText(_ context.Context, selector, text string, n int) (bool, error) {
	f.textClicks = append(f.textClicks, fmt.Sprintf("%s|%s|%d", selector, text, n))
	next, ok := f.clickText[text]
	if !ok {
		return false, nil
	}
	if next != "" {
		f.current = next
		f.location = next
	}
	return true, nil
}

func (f *fakeBrowser) SendKeys(_ context.Context, selector, value string) error {
	f.keys[selector] = value
	return nil
}

func (f *fakeBrowser) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	v, ok := f.attrs[selector+"@"+name]
	return v, ok, nil
}

func (f *fakeBrowser) Back(context.Context) error {
	f.backs++
	return nil
}

func (f *fakeBrowser) Location(context.Context) (string, error) { return f.location, nil }

func (f *fakeBrowser) Cookies(context.Context) ([]*http.Cookie, error) {
	return []*http.Cookie{{Name: "JSESSIONID", Value: "abc"}}, nil
}

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}
