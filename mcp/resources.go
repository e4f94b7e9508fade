package mcp

import (
	"fmt"
	"strings"

	mergeodf "github.com/OSSII/oxool-module-mergeodf"
)

// RegisterResources adds the template description resources. Resources
// use URI templates with the odf:// scheme and take the template path as
// a query parameter.
func RegisterResources(s *Server, engine *mergeodf.Engine) {
	s.AddResource(Resource{
		URI:         "odf://schema",
		Name:        "Template OpenAPI Schema",
		Description: "OpenAPI description of a template's merge API. Pass the template path as a query parameter: odf://schema?path=/path/to/report.ott",
		MIMEType:    "application/json",
		Handler:     describeResource(engine, mergeodf.DescribeOpenAPI, "application/json"),
	})

	s.AddResource(Resource{
		URI:         "odf://sample",
		Name:        "Template Sample Body",
		Description: "Inline sample of a template's request body. Pass the template path as a query parameter: odf://sample?path=/path/to/report.ott",
		MIMEType:    "text/html",
		Handler:     describeResource(engine, mergeodf.DescribeSample, "text/html"),
	})

	s.AddResource(Resource{
		URI:         "odf://yaml",
		Name:        "Template YAML Schema",
		Description: "YAML description of a template's merge API. Pass the template path as a query parameter: odf://yaml?path=/path/to/report.ott",
		MIMEType:    "text/plain",
		Handler:     describeResource(engine, mergeodf.DescribeYAML, "text/plain"),
	})
}

func describeResource(engine *mergeodf.Engine, kind mergeodf.DescribeKind, mimeType string) ResourceHandler {
	return func(uri string) ([]ResourceContent, error) {
		path := pathFromURI(uri)
		if path == "" {
			return nil, fmt.Errorf("missing 'path' parameter in URI")
		}
		out, err := engine.Describe(path, kind)
		if err != nil {
			return nil, fmt.Errorf("describing template: %w", err)
		}
		return []ResourceContent{{
			URI:      uri,
			MIMEType: mimeType,
			Text:     out,
		}}, nil
	}
}

func pathFromURI(uri string) string {
	// Parse path from URI like odf://schema?path=/foo/report.ott
	if idx := strings.Index(uri, "path="); idx >= 0 {
		return uri[idx+5:]
	}
	return ""
}
