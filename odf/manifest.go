package odf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// StripTemplate rewrites a template media type to the matching document
// media type. Applying it to an already-rewritten value is a no-op.
func StripTemplate(mediaType string) string {
	mediaType = strings.ReplaceAll(mediaType,
		"application/vnd.oasis.opendocument.text-template",
		"application/vnd.oasis.opendocument.text")
	return strings.ReplaceAll(mediaType,
		"application/vnd.oasis.opendocument.spreadsheet-template",
		"application/vnd.oasis.opendocument.spreadsheet")
}

// RewriteMimetype drops the -template suffix from both the manifest's "/"
// entry and the top-level mimetype member, so office suites open the
// produced file as a document rather than a template.
func (p *Package) RewriteMimetype() error {
	doc, err := p.loadManifest()
	if err != nil {
		return err
	}
	for _, fe := range doc.FindElements("//manifest:file-entry") {
		if fe.SelectAttrValue("manifest:full-path", "") == "/" {
			mt := fe.SelectAttrValue("manifest:media-type", "")
			fe.CreateAttr("manifest:media-type", StripTemplate(mt))
		}
	}
	if err := doc.WriteToFile(p.ManifestPath); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrRepack, err)
	}

	mimePath := p.Dir + string(os.PathSeparator) + "mimetype"
	mime, err := os.ReadFile(mimePath)
	if err != nil {
		return fmt.Errorf("%w: mimetype: %v", ErrRepack, err)
	}
	rewritten := StripTemplate(strings.TrimSpace(string(mime)))
	if err := os.WriteFile(mimePath, []byte(rewritten), 0o644); err != nil {
		return fmt.Errorf("%w: mimetype: %v", ErrRepack, err)
	}
	return nil
}

// RegisterPicture appends a manifest entry for Pictures/<serial>. The
// media type is left empty; office suites sniff the picture payload.
func (p *Package) RegisterPicture(serial int) error {
	doc, err := p.loadManifest()
	if err != nil {
		return err
	}
	root := doc.FindElement("//manifest:manifest")
	if root == nil {
		return fmt.Errorf("%w: manifest root missing", ErrFormat)
	}
	fe := root.CreateElement("manifest:file-entry")
	fe.CreateAttr("manifest:full-path", "Pictures/"+strconv.Itoa(serial))
	fe.CreateAttr("manifest:media-type", "")
	if err := doc.WriteToFile(p.ManifestPath); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrRepack, err)
	}
	return nil
}

func (p *Package) loadManifest() (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalAttrVal: true,
		CanonicalText:    true,
		CanonicalEndTags: true,
	}
	if err := doc.ReadFromFile(p.ManifestPath); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrFormat, err)
	}
	return doc, nil
}
