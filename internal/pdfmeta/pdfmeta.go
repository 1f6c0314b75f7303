// Package pdfmeta inspects uploaded PDFs: it validates that the bytes open as
// a PDF, counts pages and pulls plain text for previews.
package pdfmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

const MimeType = "application/pdf"

var (
	ErrNotPDF = errors.New("not a pdf")
	ErrEmpty  = errors.New("pdf has no pages")
)

type Info struct {
	Pages int `json:"pages"`
}

// IsPDF checks the %PDF- magic at the start of data.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// Inspect opens data with the PDF reader and reports its page count.
func Inspect(data []byte) (Info, error) {
	r, err := open(data)
	if err != nil {
		return Info{}, err
	}
	pages, err := numPages(r)
	if err != nil {
		return Info{}, err
	}
	if pages <= 0 {
		return Info{}, ErrEmpty
	}
	return Info{Pages: pages}, nil
}

// ExtractText returns the plain text of every page, concatenated.
func ExtractText(data []byte) (text string, err error) {
	r, err := open(data)
	if err != nil {
		return "", err
	}
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// The reader panics on some malformed inputs; those surface as ErrNotPDF.
func open(data []byte) (r *pdf.Reader, err error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return r, nil
}

func numPages(r *pdf.Reader) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n = 0
			err = fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()
	return r.NumPage(), nil
}
