package schema

import (
	"fmt"
	"strings"
)

const sampleHeader = "* JSON bodies require the header content-type='application/json'<br />" +
	"* form data passed as JSON must be URL-encoded (encodeURIComponent)<br />" +
	"* picture data must be Base64 encoded<br /><br />" +
	"JSON sample:<br /><br />"

const sampleIndent = "&nbsp;&nbsp;&nbsp;&nbsp;"

// Sample renders the template's variables as an HTML-escaped inline hint
// document: one line per variable showing its type and description, with
// groups as arrays holding a single inline object.
func (t *Template) Sample() string {
	var b strings.Builder
	for _, p := range dedupe(t.Singles) {
		fmt.Fprintf(&b, "%q: %q,<br />", p.Name, sampleHint(p))
	}
	groups := dedupeGroups(t.Groups)
	for i, g := range groups {
		fmt.Fprintf(&b, "%s%q:[<br />%s%s{", sampleIndent, g.Name, sampleIndent, sampleIndent)
		props := dedupe(g.Properties)
		for j, p := range props {
			fmt.Fprintf(&b, "%q: %q", p.Name, sampleHint(p))
			if j != len(props)-1 {
				b.WriteString(",")
			}
		}
		fmt.Fprintf(&b, "}<br />%s]", sampleIndent)
		if i != len(groups)-1 {
			b.WriteString(",")
		}
		b.WriteString("<br />")
	}
	out := b.String()
	if strings.HasSuffix(out, ",<br />") {
		out = strings.TrimSuffix(out, ",<br />") + "<br />"
	}
	return out
}

// sampleHint is the per-variable hint value: the descriptor type plus the
// joined help texts.
func sampleHint(p Property) string {
	typ := p.Type
	if typ == "auto" {
		typ = "string or float"
	}
	hint := typ + "  // "
	return hint + describeText(p, " ")
}

// SampleDocument wraps a variables listing into the full inline hint
// document shown to template consumers.
func SampleDocument(vars string) string {
	return sampleHeader + "{<br />" + vars + "}"
}
