package mergeodf

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/OSSII/oxool-module-mergeodf/odf"
)

// bindGroups expands every group anchor row once per entry of its data
// sequence. The anchor row keeps its formatting for the first entry;
// later entries clone an initialized template row whose non-variable
// cells were cleared. The original anchor row is removed afterwards.
func (s *session) bindGroups(data map[string]any, groups []*etree.Element) {
	for _, row := range groups {
		grpname := row.SelectAttrValue("grpname", "")
		v, ok := lookup(data, grpname)
		if !ok {
			removeElement(row)
			continue
		}
		seq, ok := sequenceOf(v)
		if !ok {
			s.engine.cfg.logger.Warn("group data is not a sequence",
				"group", grpname, "error", ErrDataShape)
			removeElement(row)
			continue
		}

		initRow := s.initTemplateRow(row)
		s.updateRowSpans(row, len(seq))

		parent := row.Parent()
		if parent == nil {
			continue
		}
		current := row
		for i, entry := range seq {
			var clone *etree.Element
			if i == 0 {
				clone = row.Copy()
			} else {
				clone = initRow.Copy()
			}
			parent.InsertChildAt(current.Index()+1, clone)
			current = clone

			vars := clone.FindElements(".//" + s.placeholderTag())
			rowData := entry
			if i == 0 {
				// The first row may reference top-level variables that
				// the sequence entry does not carry.
				rowData = s.fillFromTopLevel(data, entry, vars)
			}
			s.bindSingles(rowData, vars)
		}
		removeElement(row)
	}
}

// fillFromTopLevel returns entry extended with top-level values for any
// variable name the entry is missing.
func (s *session) fillFromTopLevel(data, entry map[string]any, vars []*etree.Element) map[string]any {
	merged := make(map[string]any, len(entry))
	for k, v := range entry {
		merged[k] = v
	}
	for _, el := range vars {
		name := s.varName(el)
		if _, ok := merged[name]; ok {
			continue
		}
		if v, ok := lookup(data, name); ok {
			merged[name] = v
		}
	}
	return merged
}

// initTemplateRow deep-clones the anchor row and clears everything a
// repeated row must not inherit: the paragraphs of cells without
// variables and, in spreadsheets, those cells' value attributes and the
// statistic cells, which are produced once at the single-variable stage.
func (s *session) initTemplateRow(row *etree.Element) *etree.Element {
	clone := row.Copy()
	if s.kind == odf.KindSpreadsheet {
		s.initSpreadsheetRow(clone)
	} else {
		s.initTextRow(clone)
	}
	return clone
}

func (s *session) initSpreadsheetRow(clone *etree.Element) {
	for _, cell := range clone.ChildElements() {
		vars := cell.FindElements(".//text:a")
		if len(vars) == 0 {
			for _, p := range cell.SelectElements("text:p") {
				cell.RemoveChild(p)
			}
			cell.RemoveAttr("office:value")
			cell.RemoveAttr("office:value-type")
			cell.RemoveAttr("calcext:value-type")
			cell.RemoveAttr("table:formula")
			continue
		}
		// The designer tool allows a single variable per cell.
		desc := vars[0].SelectAttrValue("office:target-frame-name", "")
		if descriptorValue(desc, "Type") == typeStatistic {
			if p := vars[0].Parent(); p != nil {
				cell.RemoveChild(p)
			}
			cell.RemoveAttr("office:value")
			cell.RemoveAttr("office:value-type")
			cell.RemoveAttr("calcext:value-type")
		}
	}
}

func (s *session) initTextRow(clone *etree.Element) {
	for _, cell := range clone.ChildElements() {
		if len(cell.FindElements(".//text:placeholder")) != 0 {
			continue
		}
		// Cells holding a text:list keep their content: those carry the
		// row numbering.
		if len(cell.FindElements(".//text:list")) != 0 {
			continue
		}
		for _, p := range cell.SelectElements("text:p") {
			cell.RemoveChild(p)
		}
	}
}

// updateRowSpans widens table:number-rows-spanned on the cells of the
// row preceding the group so merged cells still cover the expanded rows.
func (s *session) updateRowSpans(row *etree.Element, lines int) {
	var span *etree.Element
	if s.kind == odf.KindSpreadsheet {
		target := row
		for target != nil && target.FullTag() != "table:table-row-group" {
			target = target.Parent()
		}
		if target == nil {
			return
		}
		if prev := prevSiblingElement(target); prev != nil {
			span = firstChildElement(prev)
		} else {
			span = target
		}
	} else {
		prev := prevSiblingElement(row)
		if prev == nil {
			return
		}
		span = firstChildElement(prev)
	}

	for span != nil {
		if span.SelectAttr("table:number-rows-spanned") != nil {
			span.CreateAttr("table:number-rows-spanned", strconv.Itoa(lines+1))
		}
		span = nextSiblingElement(span)
	}
}

func firstChildElement(el *etree.Element) *etree.Element {
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func prevSiblingElement(el *etree.Element) *etree.Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	var prev *etree.Element
	for _, ch := range parent.ChildElements() {
		if ch == el {
			return prev
		}
		prev = ch
	}
	return nil
}

func nextSiblingElement(el *etree.Element) *etree.Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	seen := false
	for _, ch := range parent.ChildElements() {
		if seen {
			return ch
		}
		if ch == el {
			seen = true
		}
	}
	return nil
}
