// Package schema emits API descriptions for scanned report templates.
//
// A template's placeholders imply a request body: single variables map to
// typed properties, repeating groups to arrays of objects. The package
// renders that shape three ways: Swagger/OpenAPI JSON, an HTML-escaped
// sample document for inline help, and YAML.
package schema

// Property describes one template variable.
type Property struct {
	Name        string
	Type        string // normalized descriptor kind: string, float, file, ...
	Items       string // enum/boolean labels, possibly quoted
	Description string
	Format      string
	APIHelp     string
}

// Group is a repeating row group and the variables inside it.
type Group struct {
	Name       string
	Properties []Property
}

// Template is the scanned variable schema of one report template.
type Template struct {
	Endpoint string
	Singles  []Property
	Groups   []Group
}

// jsonType maps a descriptor kind to its JSON Schema type.
func jsonType(kind string) string {
	switch kind {
	case "float", "percentage":
		return "number"
	case "currency":
		return "integer"
	case "boolean":
		return "boolean"
	case "file":
		return "array"
	}
	// string, auto, date, time, enum, statistic, barcode
	return "string"
}

// dedupe returns properties filtered to the first occurrence of each
// name. Duplicate names are legal across groups but collapse within one
// scope when emitting schemas.
func dedupe(props []Property) []Property {
	seen := make(map[string]bool, len(props))
	out := props[:0:0]
	for _, p := range props {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}

// dedupeGroups keeps the first group of each name.
func dedupeGroups(groups []Group) []Group {
	seen := make(map[string]bool, len(groups))
	out := groups[:0:0]
	for _, g := range groups {
		if seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		out = append(out, g)
	}
	return out
}
