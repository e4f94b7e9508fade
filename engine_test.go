package mergeodf

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// A 1x1 PNG, Base64 encoded, used for picture variables.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func TestMergeTextSimple(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:String">&lt;name&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	if !strings.HasSuffix(out, ".odt") {
		t.Fatalf("produced file %q is not .odt", out)
	}
	archive := readArchive(t, out)
	doc := parseContent(t, archive)

	p := doc.FindElement("//text:p")
	if p == nil {
		t.Fatal("text:p missing from output")
	}
	if got := innerText(p); got != "Ada" {
		t.Fatalf("paragraph text = %q, want Ada", got)
	}
	if doc.FindElement("//text:placeholder") != nil {
		t.Fatal("placeholder survived the merge")
	}
}

func TestMergeMissingValueRemovesPlaceholder(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:String">&lt;name&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"name": nil})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	if doc.FindElement("//text:placeholder") != nil {
		t.Fatal("placeholder with null value survived")
	}
}

func TestMergeSpreadsheetEnum(t *testing.T) {
	body := `
<table:table table:name="Sheet1">
  <table:table-row>
    <table:table-cell>
      <text:p><text:a xlink:href="#" office:target-frame-name="Type:Enum;Items:&quot;M,F&quot;">sex</text:a></text:p>
    </table:table-cell>
  </table:table-row>
</table:table>`
	tmpl := writeSpreadsheetTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"sex": float64(2)})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	if !strings.HasSuffix(out, ".ods") {
		t.Fatalf("produced file %q is not .ods", out)
	}
	doc := parseContent(t, readArchive(t, out))
	cell := doc.FindElement("//table:table-cell")
	if got := innerText(cell); got != "F" {
		t.Fatalf("cell text = %q, want F", got)
	}
}

func TestMergeSpreadsheetTypedCell(t *testing.T) {
	body := `
<table:table table:name="Sheet1">
  <table:table-row>
    <table:table-cell>
      <text:p><text:a xlink:href="#" office:target-frame-name="Type:Float;Format:value">price</text:a></text:p>
    </table:table-cell>
  </table:table-row>
</table:table>`
	tmpl := writeSpreadsheetTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"price": 12.5})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	cell := doc.FindElement("//table:table-cell")
	if got := cell.SelectAttrValue("office:value-type", ""); got != "float" {
		t.Fatalf("office:value-type = %q", got)
	}
	if got := cell.SelectAttrValue("calcext:value-type", ""); got != "float" {
		t.Fatalf("calcext:value-type = %q", got)
	}
	if got := cell.SelectAttrValue("office:value", ""); got != "12.5" {
		t.Fatalf("office:value = %q", got)
	}
	if got := innerText(cell); got != "12.5" {
		t.Fatalf("cell text = %q", got)
	}
}

func TestMergeSpreadsheetAutoPromotion(t *testing.T) {
	body := `
<table:table table:name="Sheet1">
  <table:table-row>
    <table:table-cell>
      <text:p><text:a xlink:href="#" office:target-frame-name="Type:Auto">v</text:a></text:p>
    </table:table-cell>
  </table:table-row>
</table:table>`

	// Numeric value promotes to a float cell.
	out, err := testEngine(t).Merge(writeSpreadsheetTemplate(t, body), map[string]any{"v": "42"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)
	doc := parseContent(t, readArchive(t, out))
	cell := doc.FindElement("//table:table-cell")
	if got := cell.SelectAttrValue("office:value-type", ""); got != "float" {
		t.Fatalf("numeric auto office:value-type = %q", got)
	}

	// Non-numeric value stays a plain text substitution.
	out2, err := testEngine(t).Merge(writeSpreadsheetTemplate(t, body), map[string]any{"v": "hello"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out2)
	doc2 := parseContent(t, readArchive(t, out2))
	cell2 := doc2.FindElement("//table:table-cell")
	if got := cell2.SelectAttrValue("office:value-type", ""); got != "" {
		t.Fatalf("text auto office:value-type = %q, want unset", got)
	}
	if got := innerText(cell2); got != "hello" {
		t.Fatalf("cell text = %q", got)
	}
}

func TestMergeTextBoolean(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:Boolean;Items:&quot;yes,no&quot;">&lt;agree&gt;</text:placeholder></text:p>`

	for value, want := range map[any]string{
		true:  "yes",
		"YES": "yes",
		"1":   "yes",
		false: "no",
	} {
		out, err := testEngine(t).Merge(writeTextTemplate(t, body), map[string]any{"agree": value})
		if err != nil {
			t.Fatalf("Merge(%v): %v", value, err)
		}
		doc := parseContent(t, readArchive(t, out))
		if got := innerText(doc.FindElement("//text:p")); got != want {
			t.Errorf("Merge(%v) text = %q, want %q", value, got, want)
		}
		os.Remove(out)
	}
}

func TestMergeGroupExpansion(t *testing.T) {
	tmpl := writeTextTemplate(t, textGroupBody)

	data := map[string]any{
		"title": "Report",
		"rows": []any{
			map[string]any{"n": "a", "v": "1"},
			map[string]any{"n": "b", "v": "2"},
		},
	}
	out, err := testEngine(t).Merge(tmpl, data)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	rows := doc.FindElements("//table:table-row")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for i, want := range [][2]string{{"a", "1"}, {"b", "2"}} {
		cells := rows[i].SelectElements("table:table-cell")
		if len(cells) != 2 {
			t.Fatalf("row %d cells = %d", i, len(cells))
		}
		if got := innerText(cells[0]); got != want[0] {
			t.Errorf("row %d cell 0 = %q, want %q", i, got, want[0])
		}
		if got := innerText(cells[1]); got != want[1] {
			t.Errorf("row %d cell 1 = %q, want %q", i, got, want[1])
		}
	}

	// Design-time markers never reach the output.
	if doc.FindElement("//office:annotation") != nil {
		t.Fatal("annotation survived")
	}
}

func TestMergeGroupNonSequenceRemovesRow(t *testing.T) {
	tmpl := writeTextTemplate(t, textGroupBody)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"rows": "oops"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	if rows := doc.FindElements("//table:table-row"); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestMergeGroupFillsFirstRowFromTopLevel(t *testing.T) {
	tmpl := writeTextTemplate(t, textGroupBody)

	data := map[string]any{
		"v": "top",
		"rows": []any{
			map[string]any{"n": "a"},
			map[string]any{"n": "b", "v": "2"},
		},
	}
	out, err := testEngine(t).Merge(tmpl, data)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	rows := doc.FindElements("//table:table-row")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// First row takes the missing v from the top-level object; later
	// rows do not.
	if got := innerText(rows[0].SelectElements("table:table-cell")[1]); got != "top" {
		t.Fatalf("row 0 v = %q, want top", got)
	}
	if got := innerText(rows[1].SelectElements("table:table-cell")[1]); got != "2" {
		t.Fatalf("row 1 v = %q, want 2", got)
	}
}

func TestMergeStatisticFormula(t *testing.T) {
	tmpl := writeSpreadsheetTemplate(t, spreadsheetGroupBody)

	data := map[string]any{
		"header": "Sales",
		"sales": []any{
			map[string]any{"amount": float64(1)},
			map[string]any{"amount": float64(2)},
			map[string]any{"amount": float64(3)},
		},
	}
	out, err := testEngine(t).Merge(tmpl, data)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	cell := findFormulaCell(doc)
	if cell == nil {
		t.Fatal("formula cell missing")
	}
	if got := cell.SelectAttrValue("table:formula", ""); got != "of:=SUM([.B2:.B4])" {
		t.Fatalf("formula = %q", got)
	}
	if got := cell.SelectAttrValue("office:value-type", ""); got != "float" {
		t.Fatalf("office:value-type = %q", got)
	}

	// Three expanded rows carry the amounts.
	var values []string
	for _, c := range doc.FindElements("//table:table-cell") {
		values = append(values, innerText(c))
	}
	joined := strings.Join(values, ",")
	for _, want := range []string{"1", "2", "3"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expanded cells %q missing %q", joined, want)
		}
	}
}

func TestMergeStatisticUnknownMethodPassesThrough(t *testing.T) {
	body := strings.ReplaceAll(spreadsheetGroupBody, "method:總和", "method:PRODUCT")
	tmpl := writeSpreadsheetTemplate(t, body)

	data := map[string]any{
		"sales": []any{map[string]any{"amount": float64(1)}},
	}
	out, err := testEngine(t).Merge(tmpl, data)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	doc := parseContent(t, readArchive(t, out))
	cell := findFormulaCell(doc)
	if cell == nil {
		t.Fatal("formula cell missing")
	}
	if got := cell.SelectAttrValue("table:formula", ""); got != "of:=PRODUCT([.B2:.B2])" {
		t.Fatalf("formula = %q", got)
	}
}

func TestMergeImage(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:Image;Size:3x2">&lt;logo&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"logo": tinyPNG})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	archive := readArchive(t, out)
	if _, ok := archive["Pictures/0"]; !ok {
		t.Fatal("Pictures/0 missing from archive")
	}

	doc := parseContent(t, archive)
	frame := doc.FindElement("//draw:frame")
	if frame == nil {
		t.Fatal("draw:frame missing")
	}
	if got := frame.SelectAttrValue("svg:width", ""); got != "3cm" {
		t.Fatalf("svg:width = %q", got)
	}
	if got := frame.SelectAttrValue("svg:height", ""); got != "2cm" {
		t.Fatalf("svg:height = %q", got)
	}
	if got := frame.SelectAttrValue("text:anchor-type", ""); got != "as-char" {
		t.Fatalf("text:anchor-type = %q", got)
	}
	img := frame.FindElement("draw:image")
	if img == nil {
		t.Fatal("draw:image missing")
	}
	if got := img.SelectAttrValue("xlink:href", ""); got != "Pictures/0" {
		t.Fatalf("xlink:href = %q", got)
	}
	if got := img.SelectAttrValue("loext:mime-type", ""); got != "image/png" {
		t.Fatalf("loext:mime-type = %q", got)
	}

	// Every picture appears exactly once in the manifest.
	manifest := string(archive["META-INF/manifest.xml"])
	if strings.Count(manifest, `manifest:full-path="Pictures/0"`) != 1 {
		t.Fatalf("manifest does not list Pictures/0 exactly once:\n%s", manifest)
	}
}

func TestMergeImageBadBase64RemovesPlaceholder(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:Image">&lt;logo&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"logo": "*** not base64 ***"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	archive := readArchive(t, out)
	if _, ok := archive["Pictures/0"]; ok {
		t.Fatal("Pictures/0 written for an undecodable payload")
	}
	doc := parseContent(t, archive)
	if doc.FindElement("//text:placeholder") != nil {
		t.Fatal("placeholder survived")
	}
}

func TestMergeBarcode(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:Barcode;Size:4x4">&lt;code&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"code": "https://example.com/r/42"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	archive := readArchive(t, out)
	payload, ok := archive["Pictures/0"]
	if !ok {
		t.Fatal("Pictures/0 missing")
	}
	if !bytes.HasPrefix(payload, []byte("\x89PNG")) {
		t.Fatal("barcode part is not a PNG")
	}
	doc := parseContent(t, archive)
	frame := doc.FindElement("//draw:frame")
	if frame == nil {
		t.Fatal("draw:frame missing")
	}
	if got := frame.SelectAttrValue("svg:width", ""); got != "4cm" {
		t.Fatalf("svg:width = %q", got)
	}
}

func TestMergeRewritesMimetype(t *testing.T) {
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:String">&lt;x&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := testEngine(t).Merge(tmpl, map[string]any{"x": "y"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer zr.Close()

	// The mimetype member is first, stored, and no longer a template.
	first := zr.File[0]
	if first.Name != "mimetype" {
		t.Fatalf("first member = %q, want mimetype", first.Name)
	}
	if first.Method != zip.Store {
		t.Fatalf("mimetype method = %d, want Store", first.Method)
	}
	rc, _ := first.Open()
	data, _ := io.ReadAll(rc)
	rc.Close()
	if got := string(data); got != "application/vnd.oasis.opendocument.text" {
		t.Fatalf("mimetype = %q", got)
	}

	manifest := readArchive(t, out)["META-INF/manifest.xml"]
	if strings.Contains(string(manifest), "-template") {
		t.Fatal("manifest still declares a template media type")
	}
}

func TestMergeSessionCleanup(t *testing.T) {
	workRoot := t.TempDir()
	engine := NewEngine(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkDir(workRoot),
	)
	body := `<text:p><text:placeholder text:placeholder-type="text" text:description="Type:String">&lt;x&gt;</text:placeholder></text:p>`
	tmpl := writeTextTemplate(t, body)

	out, err := engine.Merge(tmpl, map[string]any{"x": "y"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer os.Remove(out)

	entries, err := os.ReadDir(workRoot)
	if err != nil {
		t.Fatalf("reading work root: %v", err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		t.Fatalf("work root should hold only the produced file, got %v", entries)
	}
	if filepath.Join(workRoot, entries[0].Name()) != out {
		t.Fatalf("leftover entry %q is not the produced file %q", entries[0].Name(), out)
	}
}

func TestMergeSessionCleanupOnFailure(t *testing.T) {
	workRoot := t.TempDir()
	engine := NewEngine(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkDir(workRoot),
	)

	// A zip without content.xml is not a usable template.
	broken := filepath.Join(t.TempDir(), "broken.ott")
	f, _ := os.Create(broken)
	zw := zip.NewWriter(f)
	w, _ := zw.Create("mimetype")
	io.WriteString(w, "application/vnd.oasis.opendocument.text-template")
	zw.Close()
	f.Close()

	_, err := engine.Merge(broken, map[string]any{})
	if !errors.Is(err, ErrTemplateFormat) {
		t.Fatalf("err = %v, want ErrTemplateFormat", err)
	}

	entries, _ := os.ReadDir(workRoot)
	if len(entries) != 0 {
		t.Fatalf("failed session left %v behind", entries)
	}
}

func TestMergeUnreadableTemplate(t *testing.T) {
	_, err := testEngine(t).Merge(filepath.Join(t.TempDir(), "absent.ott"), nil)
	if !errors.Is(err, ErrTemplateIO) {
		t.Fatalf("err = %v, want ErrTemplateIO", err)
	}
}

func TestDescribeDoesNotTouchTemplate(t *testing.T) {
	tmpl := writeTextTemplate(t, textGroupBody)
	before, err := os.ReadFile(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := testEngine(t).Describe(tmpl, DescribeOpenAPI); err != nil {
		t.Fatalf("Describe: %v", err)
	}

	after, err := os.ReadFile(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("Describe modified the template file")
	}
	dir, _ := os.ReadDir(filepath.Dir(tmpl))
	if len(dir) != 1 {
		t.Fatalf("Describe left files next to the template: %v", dir)
	}
}

func TestDescribeUnknownKind(t *testing.T) {
	tmpl := writeTextTemplate(t, textGroupBody)
	if _, err := testEngine(t).Describe(tmpl, DescribeKind("toml")); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}
