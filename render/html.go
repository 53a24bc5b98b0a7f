package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"

	"github.com/robertmeta/report-cli/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTML renders the browser views.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded templates.
func NewHTML() (*HTML, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"formatDate":  model.FormatDate,
		"variant":     model.FormatVariant,
		"showing":     Showing,
		"statusLines": StatusLines,
		"times":       times,
		"pageURL":     PageURL,
		"reportURL":   ReportURL,
		"pdfURL":      PDFURL,
		"inc":         func(n int) int { return n + 1 },
		"dec":         func(n int) int { return n - 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// Index writes the report list page.
func (h *HTML) Index(w io.Writer, l Listing) error {
	return h.tmpl.ExecuteTemplate(w, "index", l)
}

// detailPage is the data of the detail template.
type detailPage struct {
	Detail
	Back string
}

// Detail writes the report detail page. year is the listing to link back to.
func (h *HTML) Detail(w io.Writer, d Detail, year int) error {
	back := "/"
	if year != 0 {
		back = "/?" + url.Values{"year": {strconv.Itoa(year)}}.Encode()
	}
	return h.tmpl.ExecuteTemplate(w, "detail", detailPage{Detail: d, Back: back})
}

// PageURL links to page n of l, keeping its year and, if keepQuery is set,
// its search text.
func PageURL(l Listing, n int, keepQuery bool) string {
	v := url.Values{}
	if l.Year != 0 {
		v.Set("year", strconv.Itoa(l.Year))
	}
	if keepQuery && l.Query != "" {
		v.Set("q", l.Query)
	}
	if n > 1 {
		v.Set("page", strconv.Itoa(n))
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

// ReportURL links to the detail page of reportID.
func ReportURL(reportID string, year int) string {
	u := "/reports/" + url.PathEscape(reportID)
	if year != 0 {
		u += "?" + url.Values{"year": {strconv.Itoa(year)}}.Encode()
	}
	return u
}

// PDFURL links to the PDF download of reportID.
func PDFURL(reportID string) string {
	return "/reports/" + url.PathEscape(reportID) + "/pdf"
}
