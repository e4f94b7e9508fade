// Package odf reads and writes Open Document Format packages: ZIP archives
// holding a mimetype marker, a manifest, XML parts and binary resources.
//
// A template archive is extracted into a working directory, its XML parts
// are mutated in place by the caller, and Repack assembles the produced
// document with the mimetype entry first and stored uncompressed, as the
// ODF packaging rules require.
package odf

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
)

// Sentinel errors for package-level failure conditions.
var (
	ErrIO     = errors.New("odf: package cannot be read")
	ErrFormat = errors.New("odf: not a usable ODF package")
	ErrRepack = errors.New("odf: produced archive cannot be written")
)

// Kind identifies the document family of a package.
type Kind int

const (
	KindOther Kind = iota
	KindText
	KindSpreadsheet
)

// MimeType returns the mimetype of the produced (non-template) document.
func (k Kind) MimeType() string {
	if k == KindSpreadsheet {
		return "application/vnd.oasis.opendocument.spreadsheet"
	}
	return "application/vnd.oasis.opendocument.text"
}

// Ext returns the file extension of the produced document.
func (k Kind) Ext() string {
	if k == KindSpreadsheet {
		return ".ods"
	}
	return ".odt"
}

// Package is an extracted ODF archive rooted at Dir.
type Package struct {
	Dir          string // working directory holding the extracted members
	ContentPath  string // Dir/content.xml
	ManifestPath string // Dir/META-INF/manifest.xml
}

// Extract decompresses the template at templatePath into dir. The archive
// must contain content.xml and META-INF/manifest.xml.
func Extract(templatePath, dir string) (*Package, error) {
	f, err := os.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	p := &Package{Dir: dir}
	for _, zf := range zr.File {
		if err := extractMember(zf, dir); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFormat, zf.Name, err)
		}
		switch zf.Name {
		case "content.xml":
			p.ContentPath = filepath.Join(dir, "content.xml")
		case "META-INF/manifest.xml":
			p.ManifestPath = filepath.Join(dir, "META-INF", "manifest.xml")
		}
	}
	if p.ContentPath == "" {
		return nil, fmt.Errorf("%w: content.xml missing", ErrFormat)
	}
	if p.ManifestPath == "" {
		return nil, fmt.Errorf("%w: META-INF/manifest.xml missing", ErrFormat)
	}
	return p, nil
}

func extractMember(zf *zip.File, dir string) error {
	name := filepath.FromSlash(zf.Name)
	path := filepath.Join(dir, name)
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
		return fmt.Errorf("member escapes working directory")
	}
	if zf.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// DetectKind inspects a parsed content.xml and reports the document family.
func DetectKind(doc *etree.Document) Kind {
	kind := KindOther
	if doc.FindElement("//office:body/office:text") != nil {
		kind = KindText
	}
	if doc.FindElement("//office:body/office:spreadsheet") != nil {
		kind = KindSpreadsheet
	}
	return kind
}

// Repack archives the working directory into <Dir><ext> and returns the
// produced path. The mimetype member is written first and stored.
func (p *Package) Repack(kind Kind) (string, error) {
	out := p.Dir + kind.Ext()
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepack, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	mime, err := os.ReadFile(filepath.Join(p.Dir, "mimetype"))
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: mimetype: %v", ErrRepack, err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: %v", ErrRepack, err)
	}
	if _, err := w.Write(mime); err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: %v", ErrRepack, err)
	}

	err = filepath.Walk(p.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.Dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == "mimetype" {
			return nil
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("%w: %v", ErrRepack, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepack, err)
	}
	return out, nil
}
