package mergeodf

import (
	"bytes"
	"encoding/base64"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/OSSII/oxool-module-mergeodf/odf"

	// Decoders registered for picture payload sniffing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// bindFile embeds a Base64-encoded picture value: the payload becomes the
// next Pictures/<serial> part and the placeholder is replaced with a
// draw:frame referencing it. Undecodable payloads drop the placeholder.
func (s *session) bindFile(data map[string]any, el *etree.Element, desc Descriptor) {
	name := s.varName(el)
	raw, ok := lookup(data, name)
	if !ok {
		removeElement(el)
		return
	}

	encoded := strings.Map(dropSpace, valueString(raw))
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.engine.cfg.logger.Warn("picture payload undecodable",
			"variable", name, "error", ErrEncoding)
		removeElement(el)
		return
	}
	s.placePicture(el, desc, payload)
}

// placePicture writes payload as the session's next picture part,
// registers it in the manifest and swaps the placeholder for a
// draw:frame. Spreadsheets replace the whole enclosing cell so no stale
// cell properties survive.
func (s *session) placePicture(el *etree.Element, desc Descriptor, payload []byte) {
	serial := s.picSerial
	if err := s.writePicture(serial, payload); err != nil {
		s.engine.cfg.logger.Warn("picture write failed", "serial", serial, "error", err)
		removeElement(el)
		return
	}
	if err := s.pkg.RegisterPicture(serial); err != nil {
		s.engine.cfg.logger.Warn("picture manifest entry failed", "serial", serial, "error", err)
	}

	frame := s.pictureFrame(serial, desc.Size, sniffImageType(payload))
	if s.kind == odf.KindText {
		replaceElement(el, frame)
	} else {
		cell := etree.NewElement("table:table-cell")
		cell.AddChild(frame)
		old := grandparent(el)
		if old == nil || old.Parent() == nil {
			removeElement(el)
			return
		}
		replaceElement(old, cell)
	}
	s.picSerial++
}

func (s *session) writePicture(serial int, payload []byte) error {
	dir := filepath.Join(s.pkg.Dir, "Pictures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, strconv.Itoa(serial)), payload, 0o644)
}

// pictureFrame builds the draw:frame/draw:image pair referencing
// Pictures/<serial>. Word-processing frames anchor as characters;
// spreadsheet frames sit in their cell.
func (s *session) pictureFrame(serial int, size, mimeType string) *etree.Element {
	width, height := parseSize(size)

	frame := etree.NewElement("draw:frame")
	if s.kind == odf.KindText {
		frame.CreateAttr("draw:style-name", "fr1")
		frame.CreateAttr("draw:name", "Image1")
		frame.CreateAttr("text:anchor-type", "as-char")
	} else {
		frame.CreateAttr("draw:style-name", "gr1")
		frame.CreateAttr("draw:name", "Image1")
	}
	frame.CreateAttr("svg:width", width)
	frame.CreateAttr("svg:height", height)
	frame.CreateAttr("draw:z-index", "1")

	img := frame.CreateElement("draw:image")
	img.CreateAttr("xlink:href", "Pictures/"+strconv.Itoa(serial))
	img.CreateAttr("xlink:type", "simple")
	img.CreateAttr("xlink:show", "embed")
	img.CreateAttr("xlink:actuate", "onLoad")
	img.CreateAttr("loext:mime-type", mimeType)
	return frame
}

// sniffImageType detects the payload's image format. Unknown payloads
// fall back to image/png so the frame still renders in most suites.
func sniffImageType(payload []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "image/png"
	}
	return "image/" + format
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\r', '\n':
		return -1
	}
	return r
}
