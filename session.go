package mergeodf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/OSSII/oxool-module-mergeodf/odf"
	"github.com/OSSII/oxool-module-mergeodf/schema"
)

// session owns one merge or describe run: the extracted package, the
// parsed content DOM and the picture serial counter. Sessions are
// single-use and never shared.
type session struct {
	engine    *Engine
	pkg       *odf.Package
	doc       *etree.Document
	kind      odf.Kind
	picSerial int
	endpoint  string
}

func (e *Engine) newSession(templatePath string) (*session, error) {
	dir, err := os.MkdirTemp(e.cfg.workDir, "mergeodf-")
	if err != nil {
		return nil, newMergeError("Extract", err)
	}

	pkg, err := odf.Extract(templatePath, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, newMergeError("Extract", err)
	}

	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalAttrVal: true,
		CanonicalText:    true,
		CanonicalEndTags: true,
	}
	if err := doc.ReadFromFile(pkg.ContentPath); err != nil {
		os.RemoveAll(dir)
		return nil, newMergeError("Parse", ErrTemplateFormat)
	}

	kind := odf.DetectKind(doc)
	if kind == odf.KindOther {
		os.RemoveAll(dir)
		return nil, newMergeError("Parse", ErrTemplateFormat)
	}

	base := filepath.Base(templatePath)
	endpoint := strings.TrimSuffix(base, filepath.Ext(base))

	e.cfg.logger.Debug("session opened", "template", templatePath, "dir", dir)
	return &session{engine: e, pkg: pkg, doc: doc, kind: kind, endpoint: endpoint}, nil
}

// Close removes the session's working directory. It runs regardless of
// whether the session succeeded.
func (s *session) Close() {
	if s.pkg != nil {
		os.RemoveAll(s.pkg.Dir)
	}
}

// repack writes the mutated content DOM back, rewrites the template
// mimetype and archives the working directory.
func (s *session) repack() (string, error) {
	if err := s.pkg.RewriteMimetype(); err != nil {
		return "", newMergeError("Repack", err)
	}
	if err := s.doc.WriteToFile(s.pkg.ContentPath); err != nil {
		return "", newMergeError("Repack", ErrRepack)
	}
	out, err := s.pkg.Repack(s.kind)
	if err != nil {
		return "", newMergeError("Repack", err)
	}
	return out, nil
}

// template converts scanned placeholders into the schema model used by
// the API description emitters.
func (s *session) template(singles, groups []*etree.Element) *schema.Template {
	tmpl := &schema.Template{Endpoint: s.endpoint}
	for _, el := range singles {
		tmpl.Singles = append(tmpl.Singles, s.property(el))
	}
	for _, row := range groups {
		grp := schema.Group{Name: row.SelectAttrValue("grpname", "")}
		for _, el := range row.FindElements(".//" + s.placeholderTag()) {
			grp.Properties = append(grp.Properties, s.property(el))
		}
		tmpl.Groups = append(tmpl.Groups, grp)
	}
	return tmpl
}

func (s *session) property(el *etree.Element) schema.Property {
	desc := ParseDescriptor(el.SelectAttrValue(s.descriptorAttr(), ""))
	return schema.Property{
		Name:        s.varName(el),
		Type:        desc.Type,
		Items:       desc.Items,
		Description: desc.Description,
		Format:      desc.Format,
		APIHelp:     desc.APIHelp,
	}
}

// placeholderTag returns the element tag that carries variables in this
// document kind.
func (s *session) placeholderTag() string {
	if s.kind == odf.KindSpreadsheet {
		return "text:a"
	}
	return "text:placeholder"
}

// descriptorAttr returns the attribute holding the variable descriptor.
func (s *session) descriptorAttr() string {
	if s.kind == odf.KindSpreadsheet {
		return "office:target-frame-name"
	}
	return "text:description"
}

// varName returns a placeholder's variable name. Word-processing
// placeholders render as <name>; the surrounding quoting characters are
// stripped. Spreadsheet anchors use their text verbatim.
func (s *session) varName(el *etree.Element) string {
	name := innerText(el)
	if s.kind == odf.KindText {
		name = dequote(name)
	}
	return name
}

func dequote(s string) string {
	r := []rune(s)
	if len(r) < 2 {
		return s
	}
	return string(r[1 : len(r)-1])
}

// innerText concatenates every character-data descendant of e.
func innerText(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, ch := range el.Child {
			switch t := ch.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(e)
	return b.String()
}
