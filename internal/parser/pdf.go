package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser handles PDF files. It tries ledongthuc/pdf first, then pdfcpu
// content streams, then pdftotext when enabled. The first engine that
// yields any text wins.
type PDFParser struct {
	FallbackPdftotext bool
}

type pdfEngine struct {
	name    string
	extract func(path string) ([]doctree.Page, error)
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "tocindex-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	engines := []pdfEngine{
		{"ledongthuc", extractPDFPages},
		{"pdfcpu", extractPdfcpuPages},
	}
	if p.FallbackPdftotext {
		engines = append(engines, pdfEngine{"pdftotext", extractPdftotext})
	}

	var errs []string
	for _, e := range engines {
		pages, err := e.extract(tmpPath)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", e.name, err))
			continue
		}
		d := &doctree.Document{Title: baseTitle(filename), Pages: pages}
		if d.HasText() {
			return d, nil
		}
		errs = append(errs, e.name+": no text")
	}
	return nil, fmt.Errorf("extract pdf text: %s", strings.Join(errs, "; "))
}

func extractPDFPages(path string) (pages []doctree.Page, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			text = pageLines(page)
		}
		pages = append(pages, doctree.Page{Number: i, Text: text})
	}
	return pages, nil
}

// pageLines rebuilds text lines from positioned runs. GetPlainText loses
// line structure on many generators, so rows are grouped by baseline.
func pageLines(page pdflib.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		text, err := page.GetPlainText(nil)
		if err != nil {
			return ""
		}
		return text
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for _, t := range row.Content {
			b.WriteString(t.S)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func extractPdfcpuPages(path string) ([]doctree.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]doctree.Page, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text := ""
		if r, err := pdfcpu.ExtractPageContent(ctx, pageNr); err == nil && r != nil {
			if data, err := io.ReadAll(r); err == nil {
				text = streamText(data)
			}
		}
		pages = append(pages, doctree.Page{Number: pageNr, Text: text})
	}
	return pages, nil
}

func extractPdftotext(path string) ([]doctree.Page, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}
