package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TextRun places one string with BT/Tf/Td/Tj/ET.
type TextRun struct {
	Text string
	X, Y float64
	Size float64
}

// PDFSpec describes a synthetic single-page document.
type PDFSpec struct {
	Width, Height float64
	Runs          []TextRun
	// Content replaces the generated content stream when non-empty.
	Content string
	// ContentParts splits the content into an array of streams.
	ContentParts []string
	// InheritMediaBox puts the MediaBox on the Pages node instead of the page.
	InheritMediaBox bool
	// NoMediaBox omits the MediaBox entirely.
	NoMediaBox bool
	// NoPages produces a document with an empty page tree.
	NoPages bool
	// BadStartXref points startxref at the catalog instead of the xref
	// table. MuPDF repairs such files; stricter parsers reject them.
	BadStartXref bool
}

// BuildPDF renders spec as an uncompressed PDF with a valid xref table.
// The page uses Helvetica (WinAnsiEncoding) as resource /F1.
func BuildPDF(spec PDFSpec) []byte {
	if spec.Width == 0 {
		spec.Width = 600
	}
	if spec.Height == 0 {
		spec.Height = 800
	}

	mediaBox := fmt.Sprintf("/MediaBox [0 0 %s %s]", num(spec.Width), num(spec.Height))
	pageBox, pagesBox := mediaBox, ""
	switch {
	case spec.NoMediaBox:
		pageBox = ""
	case spec.InheritMediaBox:
		pageBox, pagesBox = "", mediaBox
	}

	parts := spec.ContentParts
	if len(parts) == 0 {
		content := spec.Content
		if content == "" {
			content = RunsContent(spec.Runs)
		}
		parts = []string{content}
	}

	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	if spec.NoPages {
		objects = append(objects, "<< /Type /Pages /Kids [] /Count 0 >>")
	} else {
		objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [3 0 R] /Count 1 %s >>", pagesBox))

		contentsRef := "5 0 R"
		if len(spec.ContentParts) > 0 {
			refs := make([]string, len(parts))
			for i := range parts {
				refs[i] = fmt.Sprintf("%d 0 R", 5+i)
			}
			contentsRef = "[" + strings.Join(refs, " ") + "]"
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R %s /Resources << /Font << /F1 4 0 R >> >> /Contents %s >>", pageBox, contentsRef),
			"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		)
		for _, part := range parts {
			objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(part)+1, part))
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	if spec.BadStartXref {
		xref = offsets[0]
	}
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// RunsContent returns a content stream showing each run in its own text object.
func RunsContent(runs []TextRun) string {
	var sb strings.Builder
	for _, r := range runs {
		size := r.Size
		if size == 0 {
			size = 12
		}
		fmt.Fprintf(&sb, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n", num(size), num(r.X), num(r.Y), Escape(r.Text))
	}
	return sb.String()
}

// Escape escapes a literal PDF string.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// WritePDF writes BuildPDF(spec) to dir/name and returns the path.
func WritePDF(t *testing.T, dir, name string, spec PDFSpec) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, BuildPDF(spec), 0o600))
	return path
}

func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
