package schema

import (
	"fmt"
	"strings"
)

const documentTempl = `{
    "swagger": "2.0",
    "info": {
        "version": "v1",
        "title": "ODF report API",
        "description": "Apply the data in JSON format to the template and output it as an Open Document Format file."
    },
    "host": "%s",
    "paths": {%s
    },
    "schemes": [
        "http",
        "https"
    ],
    "parameters": {
        "outputPDF": {
            "in": "query",
            "name": "outputPDF",
            "required": false,
            "type": "boolean",
            "allowEmptyValue": true,
            "description": "Output to PDF format."
        }
    }
}`

const pathsTempl = `
        "/mergeodf/%s/accessTimes": {
            "get": {
                "consumes": [
                    "multipart/form-data",
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Success",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "call_times": {
                                    "type": "integer",
                                    "description": "Number of calls."
                                }
                            }
                        }
                    }
                }
            }
        },
        "/mergeodf/%s": {
            "post": {
                "consumes": [
                    "multipart/form-data",
                    "application/json"
                ],
                "parameters": [
                    {
                        "$ref": "#/parameters/outputPDF"
                    },
                    {
                        "in": "body",
                        "name": "body",
                        "description": "",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {%s
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Malformed JSON or form body"
                    },
                    "404": {
                        "description": "No such template"
                    },
                    "500": {
                        "description": "Merge or PDF conversion failed"
                    }
                }
            }
        }`

const propTempl = `
                                "%s": {
                                    "type": "%s"%s
                                }`

const groupTempl = `
                                "%s": {
                                    "type": "array",
                                    "xml": {
                                        "name": "%s",
                                        "wrapped": true
                                    },
                                    "items": {
                                        "type": "object",
                                        "properties": {%s
                                        }
                                    }
                                }`

// OpenAPI renders the template's paths fragment: the merge POST with its
// body schema, plus the accessTimes GET. Wrap fragments of one or more
// templates with Document to obtain a complete Swagger document.
func (t *Template) OpenAPI() string {
	var props []string
	for _, p := range dedupe(t.Singles) {
		props = append(props, fmt.Sprintf(propTempl, p.Name, jsonType(p.Type), propExtras(p)))
	}
	for _, g := range dedupeGroups(t.Groups) {
		var cells []string
		for _, p := range dedupe(g.Properties) {
			cells = append(cells, fmt.Sprintf(propTempl, p.Name, jsonType(p.Type), propExtras(p)))
		}
		props = append(props, fmt.Sprintf(groupTempl, g.Name, g.Name, strings.Join(cells, ",")))
	}
	return fmt.Sprintf(pathsTempl, t.Endpoint, t.Endpoint, strings.Join(props, ","))
}

// propExtras renders the optional clauses of a property: enum labels,
// description, format and the binary items block of file variables.
func propExtras(p Property) string {
	var b strings.Builder
	if p.Type == "enum" && p.Items != "" {
		labels := splitLabels(p.Items)
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = `"` + l + `"`
		}
		fmt.Fprintf(&b, ",\n                                    \"enum\": [%s]", strings.Join(quoted, ","))
	}
	if d := describeText(p, "<br />"); d != "" {
		fmt.Fprintf(&b, ",\n                                    \"description\": \"%s\"", d)
	}
	if p.Format != "" {
		fmt.Fprintf(&b, ",\n                                    \"format\": \"%s\"", strings.ReplaceAll(p.Format, `"`, ""))
	}
	if p.Type == "file" {
		b.WriteString(",\n                                    \"items\": {\n" +
			"                                        \"type\": \"string\",\n" +
			"                                        \"format\": \"binary\"\n" +
			"                                    }")
	}
	return b.String()
}

// describeText joins ApiHelp and Description with " / ", stripping quote
// characters and replacing newlines with the given separator.
func describeText(p Property, newline string) string {
	help := strings.ReplaceAll(p.APIHelp, `"`, "")
	desc := strings.ReplaceAll(p.Description, `"`, "")
	desc = strings.ReplaceAll(desc, "\n", newline)
	switch {
	case help != "" && desc != "":
		return help + " / " + desc
	case help != "":
		return help
	default:
		return desc
	}
}

func splitLabels(items string) []string {
	var out []string
	for _, tok := range strings.Split(strings.ReplaceAll(items, `"`, ""), ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Document wraps per-template paths fragments into a complete Swagger
// document for host.
func Document(host string, fragments []string) string {
	return fmt.Sprintf(documentTempl, host, strings.Join(fragments, ","))
}
