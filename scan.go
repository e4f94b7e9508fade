package mergeodf

import (
	"github.com/beevik/etree"

	"github.com/OSSII/oxool-module-mergeodf/odf"
)

// scan walks content.xml and classifies every placeholder as a single
// variable or part of a repeating group. Group anchor rows are tagged
// with a synthetic grpname attribute naming their group. As a side
// effect all office:annotation markers, which exist only at design time,
// are deleted from the document.
//
// scan must complete before any binding mutates the DOM: the binder's
// ancestor walks would otherwise trip over annotation subtrees.
func (s *session) scan() (singles, groups []*etree.Element) {
	if s.kind == odf.KindSpreadsheet {
		singles, groups = s.scanSpreadsheet()
	} else {
		singles, groups = s.scanText()
	}
	s.removeAnnotations()
	return singles, groups
}

func (s *session) scanText() (singles, groups []*etree.Element) {
	for _, ph := range s.doc.FindElements("//text:placeholder") {
		// Placeholders sit inside a text:p; the search starts at the
		// paragraph's parent.
		anc := ph.Parent()
		if anc != nil {
			anc = anc.Parent()
		}
		for anc != nil && anc.FullTag() != "office:text" && anc.FullTag() != "table:table-cell" {
			anc = anc.Parent()
		}
		if anc == nil || anc.FullTag() != "table:table-cell" {
			singles = append(singles, ph)
			continue
		}

		row := anc.Parent()
		if row == nil {
			singles = append(singles, ph)
			continue
		}
		anns := row.FindElements(".//office:annotation")
		if len(anns) == 0 {
			singles = append(singles, ph)
			continue
		}
		// Several annotations on one row: the first one names the group.
		row.CreateAttr("grpname", annotationName(anns[0]))
		if !containsElement(groups, row) {
			groups = append(groups, row)
		}
	}
	return singles, groups
}

func (s *session) scanSpreadsheet() (singles, groups []*etree.Element) {
	for _, a := range s.doc.FindElements("//text:a") {
		typ := descriptorValue(a.SelectAttrValue("office:target-frame-name", ""), "Type")

		anc := a.Parent()
		if anc != nil {
			anc = anc.Parent()
		}
		for anc != nil && anc.FullTag() != "table:table" && anc.FullTag() != "table:table-row-group" {
			anc = anc.Parent()
		}
		// Templates whose designer removed the group keep a bare
		// table:table ancestor; statistic variables always bind at top
		// level because their formula spans the whole expanded range.
		if anc == nil || anc.FullTag() == "table:table" || typ == typeStatistic {
			singles = append(singles, a)
			continue
		}

		anns := anc.FindElements(".//office:annotation")
		if len(anns) == 0 {
			singles = append(singles, a)
			continue
		}
		// The grpname lands on the first row inside the group, not on
		// the table:table-row-group itself.
		row := anc.FindElement(".//table:table-row")
		if row == nil {
			singles = append(singles, a)
			continue
		}
		row.CreateAttr("grpname", annotationName(anns[0]))
		if !containsElement(groups, row) {
			groups = append(groups, row)
		}
	}
	return singles, groups
}

// annotationName reads the group name from an office:annotation: the
// text of its last child element.
func annotationName(ann *etree.Element) string {
	children := ann.ChildElements()
	if len(children) == 0 {
		return innerText(ann)
	}
	return innerText(children[len(children)-1])
}

func (s *session) removeAnnotations() {
	for _, tag := range []string{"office:annotation", "office:annotation-end"} {
		for _, el := range s.doc.FindElements("//" + tag) {
			if parent := el.Parent(); parent != nil {
				parent.RemoveChild(el)
			}
		}
	}
}

func containsElement(list []*etree.Element, el *etree.Element) bool {
	for _, e := range list {
		if e == el {
			return true
		}
	}
	return false
}
