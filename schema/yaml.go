package schema

import (
	"fmt"
	"strings"
)

const yamlDocumentTempl = `swagger: '2.0'
info:
  version: v1
  title: ODF report API
  description: ''
host: %s
paths:%s
schemes: ["http", "https"]
parameters:
  outputPDF:
    in: query
    name: outputPDF
    required: false
    type: boolean
    allowEmptyValue: true
    description: Output to PDF format.
`

const yamlPathsTempl = `
  /mergeodf/%s/accessTimes:
    get:
      consumes:
        - application/json
      responses:
        '200':
          description: Success
          schema:
            type: object
            properties:
              call_times:
                type: integer
                description: Number of calls.
  /mergeodf/%s:
    post:
      consumes:
        - multipart/form-data
        - application/json
      parameters:
        - $ref: '#/parameters/outputPDF'
        - in: body
          name: body
          description: ''
          required: true
          schema:
            type: object
            properties:
%s`

// YAML renders the template's paths fragment as YAML blocks, semantically
// matching the OpenAPI output. Wrap fragments with YAMLDocument.
func (t *Template) YAML() string {
	var b strings.Builder
	for _, p := range dedupe(t.Singles) {
		writeYAMLProp(&b, p, "              ")
	}
	for _, g := range dedupeGroups(t.Groups) {
		fmt.Fprintf(&b, "              %s:\n", g.Name)
		b.WriteString("                type: array\n")
		b.WriteString("                xml:\n")
		fmt.Fprintf(&b, "                  name: %s\n", g.Name)
		b.WriteString("                  wrapped: true\n")
		b.WriteString("                items:\n")
		b.WriteString("                  type: object\n")
		b.WriteString("                  properties:\n")
		for _, p := range dedupe(g.Properties) {
			writeYAMLProp(&b, p, "                    ")
		}
	}
	return fmt.Sprintf(yamlPathsTempl, t.Endpoint, t.Endpoint, strings.TrimRight(b.String(), "\n"))
}

func writeYAMLProp(b *strings.Builder, p Property, indent string) {
	fmt.Fprintf(b, "%s%s:\n", indent, p.Name)
	fmt.Fprintf(b, "%s  type: %s\n", indent, jsonType(p.Type))
	if p.Type == "enum" && p.Items != "" {
		labels := splitLabels(p.Items)
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = `"` + l + `"`
		}
		fmt.Fprintf(b, "%s  enum: [%s]\n", indent, strings.Join(quoted, ", "))
	}
	if d := describeText(p, " "); d != "" {
		fmt.Fprintf(b, "%s  description: \"%s\"\n", indent, d)
	}
	if p.Format != "" {
		fmt.Fprintf(b, "%s  format: \"%s\"\n", indent, strings.ReplaceAll(p.Format, `"`, ""))
	}
	if p.Type == "file" {
		fmt.Fprintf(b, "%s  items:\n", indent)
		fmt.Fprintf(b, "%s    type: string\n", indent)
		fmt.Fprintf(b, "%s    format: binary\n", indent)
	}
}

// YAMLDocument wraps per-template YAML fragments into a complete Swagger
// YAML document for host.
func YAMLDocument(host string, fragments []string) string {
	return fmt.Sprintf(yamlDocumentTempl, host, strings.Join(fragments, ""))
}
