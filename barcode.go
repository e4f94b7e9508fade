package mergeodf

import (
	"bytes"
	"image/png"
	"strings"

	"github.com/beevik/etree"
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/qr"
)

// bindBarcode renders a barcode placeholder. Unlike file variables the
// value is the text to encode, not image data; the descriptor Format
// selects the symbology (qr by default) and Size the frame dimensions.
func (s *session) bindBarcode(data map[string]any, el *etree.Element, desc Descriptor) {
	name := s.varName(el)
	raw, ok := lookup(data, name)
	if !ok {
		removeElement(el)
		return
	}

	payload, err := renderBarcode(valueString(raw), desc.Format)
	if err != nil {
		s.engine.cfg.logger.Warn("barcode rendering failed",
			"variable", name, "symbology", desc.Format, "error", err)
		removeElement(el)
		return
	}
	s.placePicture(el, desc, payload)
}

// renderBarcode encodes value in the requested symbology and returns the
// PNG bytes.
func renderBarcode(value, symbology string) ([]byte, error) {
	var (
		bc  barcode.Barcode
		err error
	)
	switch strings.ToLower(strings.TrimSpace(symbology)) {
	case "code128":
		bc, err = code128.Encode(value)
		if err == nil {
			bc, err = barcode.Scale(bc, 512, 160)
		}
	case "pdf417":
		bc, err = pdf417.Encode(value, 2)
		if err == nil {
			bc, err = barcode.Scale(bc, 512, 256)
		}
	default: // qr
		bc, err = qr.Encode(value, qr.M, qr.Auto)
		if err == nil {
			bc, err = barcode.Scale(bc, 512, 512)
		}
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, bc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
