package export

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// VerifyMode controls the PDF check applied after decoding.
type VerifyMode string

const (
	// VerifyOff saves decoded bytes unchecked.
	VerifyOff VerifyMode = "off"
	// VerifyWarn logs invalid documents but still saves them.
	VerifyWarn VerifyMode = "warn"
	// VerifyStrict refuses to save invalid documents.
	VerifyStrict VerifyMode = "strict"
)

// ParseVerifyMode parses "off", "warn" or "strict".
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch m := VerifyMode(s); m {
	case VerifyOff, VerifyWarn, VerifyStrict:
		return m, nil
	default:
		return "", fmt.Errorf("invalid verify mode: %q (expected off, warn or strict)", s)
	}
}

var disableConfigDir sync.Once

// Verify validates data as a PDF and returns its page count.
func Verify(data []byte) (int, error) {
	// pdfcpu would otherwise create a config directory in the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	rs := bytes.NewReader(data)
	if err := api.Validate(rs, conf); err != nil {
		return 0, fmt.Errorf("failed to validate PDF: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	pages, err := api.PageCount(rs, conf)
	if err != nil {
		return 0, fmt.Errorf("failed to count PDF pages: %w", err)
	}
	return pages, nil
}
