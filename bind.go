package mergeodf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/OSSII/oxool-module-mergeodf/odf"
)

// statisticMethods maps the designer tool's localized aggregate names to
// OpenFormula operators. Unknown names pass through literally.
var statisticMethods = map[string]string{
	"總和":  "SUM",
	"最大值": "MAX",
	"最小值": "MIN",
	"中位數": "MEDIAN",
	"計數":  "COUNT",
	"平均":  "AVERAGE",
}

// bindSingles substitutes every variable in vars with its value from
// data. Missing values remove the placeholder; per-placeholder failures
// are logged and skipped so the document is still produced.
func (s *session) bindSingles(data map[string]any, vars []*etree.Element) {
	for _, el := range vars {
		desc := ParseDescriptor(el.SelectAttrValue(s.descriptorAttr(), ""))
		switch desc.Type {
		case typeFile:
			s.bindFile(data, el, desc)
		case typeBarcode:
			s.bindBarcode(data, el, desc)
		case typeStatistic:
			s.bindStatistic(data, el, desc)
		default:
			s.bindValue(data, el, desc)
		}
	}
}

// bindValue handles the ordinary scalar types: string, auto, float,
// percentage, currency, date, time, enum and boolean.
func (s *session) bindValue(data map[string]any, el *etree.Element, desc Descriptor) {
	raw, ok := lookup(data, s.varName(el))
	if !ok {
		removeElement(el)
		return
	}
	value := translateValue(desc.Type, desc.Items, valueString(raw))

	if s.kind == odf.KindSpreadsheet {
		switch {
		case desc.Type == typeAuto && isNumber(value):
			// auto promotes to float when the value reads as a number.
			cell := grandparent(el)
			replaceWithText(el, value)
			if cell != nil {
				cell.CreateAttr("office:value", value)
				cell.CreateAttr("office:value-type", typeFloat)
				cell.CreateAttr("calcext:value-type", typeFloat)
			}
			return
		case desc.Type == typeFloat || desc.Type == typePercentage ||
			desc.Type == typeCurrency || desc.Type == typeDate || desc.Type == typeTime:
			cell := grandparent(el)
			replaceWithText(el, value)
			if cell != nil {
				cell.CreateAttr("office:value-type", desc.Type)
				cell.CreateAttr("calcext:value-type", desc.Type)
				if desc.Format != "" {
					cell.CreateAttr("office:"+desc.Format, value)
				}
			}
			return
		}
	}
	replaceWithText(el, value)
}

// bindStatistic replaces the placeholder's cell with a formula cell
// aggregating the column range its group expands into. The group length
// comes from the top-level data object, which is why statistic variables
// always bind as singles.
func (s *session) bindStatistic(data map[string]any, el *etree.Element, desc Descriptor) {
	col, row, ok := parseColumn(desc.Column)
	if !ok {
		s.engine.cfg.logger.Warn("statistic column unparseable",
			"column", desc.Column, "error", ErrDescriptorFormat)
		removeElement(el)
		return
	}

	v, ok := lookup(data, desc.GroupName)
	if !ok {
		removeElement(el)
		return
	}
	seq, ok := sequenceOf(v)
	if !ok {
		s.engine.cfg.logger.Warn("statistic group data is not a sequence",
			"group", desc.GroupName, "error", ErrDataShape)
		removeElement(el)
		return
	}

	method := desc.Method
	if op, ok := statisticMethods[method]; ok {
		method = op
	}
	formula := fmt.Sprintf("of:=%s([.%s%d:.%s%d])", method, col, row, col, row+len(seq)-1)

	cell := etree.NewElement("table:table-cell")
	cell.CreateAttr("table:formula", formula)
	cell.CreateAttr("office:value-type", typeFloat)
	cell.CreateAttr("calcext:value-type", typeFloat)

	old := grandparent(el)
	if old == nil || old.Parent() == nil {
		removeElement(el)
		return
	}
	replaceElement(old, cell)
}

// parseColumn splits a statistic column reference of the form
// "Sheet1.$B$2" into its column letters and row number.
func parseColumn(column string) (col string, row int, ok bool) {
	parts := splitTrim(column, ".")
	if len(parts) < 2 {
		return "", 0, false
	}
	addr := splitTrim(parts[1], "$")
	if len(addr) < 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(addr[1])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return addr[0], n, true
}

// parseSize reads a descriptor Size of the form "WxH" in centimetres,
// defaulting to 2.5 x 1.5.
func parseSize(size string) (width, height string) {
	width, height = "2.5cm", "1.5cm"
	tokens := splitTrim(strings.ToLower(size), "x")
	if len(tokens) == 2 {
		width = tokens[0] + "cm"
		height = tokens[1] + "cm"
	}
	return width, height
}

// replaceWithText swaps a placeholder element for a plain text node.
func replaceWithText(el *etree.Element, text string) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	parent.InsertChildAt(el.Index(), etree.NewText(text))
	parent.RemoveChild(el)
}

// replaceElement swaps old for repl within old's parent.
func replaceElement(old, repl *etree.Element) {
	parent := old.Parent()
	if parent == nil {
		return
	}
	parent.InsertChildAt(old.Index(), repl)
	parent.RemoveChild(old)
}

func removeElement(el *etree.Element) {
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
	}
}

// grandparent returns the element two levels above el: for a placeholder
// inside a text:p that is the enclosing table cell.
func grandparent(el *etree.Element) *etree.Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	return parent.Parent()
}
