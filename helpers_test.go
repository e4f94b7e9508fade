package mergeodf

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
)

const textContentTempl = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0" xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0" xmlns:xlink="http://www.w3.org/1999/xlink" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:calcext="urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0" xmlns:loext="urn:org:documentfoundation:names:experimental:office:xmlns:loext:1.0">
  <office:body>
    <office:text>%s</office:text>
  </office:body>
</office:document-content>`

const spreadsheetContentTempl = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0" xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0" xmlns:xlink="http://www.w3.org/1999/xlink" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:calcext="urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0" xmlns:loext="urn:org:documentfoundation:names:experimental:office:xmlns:loext:1.0">
  <office:body>
    <office:spreadsheet>%s</office:spreadsheet>
  </office:body>
</office:document-content>`

const manifestTempl = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0">
  <manifest:file-entry manifest:full-path="/" manifest:media-type="%s"/>
  <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>`

// writeTextTemplate builds a .ott template archive whose office:text body
// is the given XML fragment.
func writeTextTemplate(t *testing.T, body string) string {
	t.Helper()
	return writeTemplateArchive(t, "report.ott",
		"application/vnd.oasis.opendocument.text-template",
		fmt.Sprintf(textContentTempl, body))
}

// writeSpreadsheetTemplate builds a .ots template archive whose
// office:spreadsheet body is the given XML fragment.
func writeSpreadsheetTemplate(t *testing.T, body string) string {
	t.Helper()
	return writeTemplateArchive(t, "report.ots",
		"application/vnd.oasis.opendocument.spreadsheet-template",
		fmt.Sprintf(spreadsheetContentTempl, body))
}

func writeTemplateArchive(t *testing.T, name, mimetype, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating template: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	members := []struct{ name, data string }{
		{"mimetype", mimetype},
		{"META-INF/manifest.xml", fmt.Sprintf(manifestTempl, mimetype)},
		{"content.xml", content},
	}
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatalf("adding %s: %v", m.name, err)
		}
		if _, err := io.WriteString(w, m.data); err != nil {
			t.Fatalf("writing %s: %v", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing template: %v", err)
	}
	return path
}

// testEngine returns an engine with silenced diagnostics and a
// test-scoped working directory.
func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkDir(t.TempDir()),
	)
}

// newTestSession extracts a template into a fresh session; the session
// closes via t.Cleanup.
func newTestSession(t *testing.T, templatePath string) *session {
	t.Helper()
	s, err := testEngine(t).newSession(templatePath)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// readArchive loads every member of a produced archive.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening archive %s: %v", path, err)
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("opening member %s: %v", zf.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading member %s: %v", zf.Name, err)
		}
		out[zf.Name] = data
	}
	return out
}

// parseContent parses a produced archive's content.xml.
func parseContent(t *testing.T, archive map[string][]byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(archive["content.xml"]); err != nil {
		t.Fatalf("parsing content.xml: %v", err)
	}
	return doc
}

// findFormulaCell returns the first cell carrying a table:formula.
func findFormulaCell(doc *etree.Document) *etree.Element {
	for _, cell := range doc.FindElements("//table:table-cell") {
		if cell.SelectAttr("table:formula") != nil {
			return cell
		}
	}
	return nil
}
