// Package mergeodf merges structured data into Open Document Format
// templates.
//
// A template is an ODF archive (.ott or .ots) whose body carries
// placeholder elements: text:placeholder in word-processing documents,
// text:a anchors in spreadsheets. Each placeholder names a variable and
// carries a semicolon-separated descriptor (Type, Items, Format, ...)
// describing how a supplied value is rendered. Rows annotated with an
// office:annotation form repeating groups that expand once per entry of a
// data sequence.
//
// Example:
//
//	engine := mergeodf.NewEngine()
//	out, err := engine.Merge("invoice.ott", map[string]any{
//	    "customer": "Ada",
//	    "lines":    []any{map[string]any{"item": "Widget", "price": 5}},
//	})
//
// Merge produces a new .odt/.ods file under the engine's working
// directory (see WithWorkDir); Describe emits OpenAPI, sample
// or YAML descriptions of the template's implied request body.
package mergeodf

import (
	"fmt"
	"log/slog"

	"github.com/OSSII/oxool-module-mergeodf/schema"
)

// DescribeKind selects the output format of Engine.Describe.
type DescribeKind string

const (
	DescribeOpenAPI DescribeKind = "openapi"
	DescribeSample  DescribeKind = "sample"
	DescribeYAML    DescribeKind = "yaml"
)

// Engine creates merge sessions. An Engine is safe for concurrent use;
// every call runs on its own session with its own working directory.
type Engine struct {
	cfg engineConfig
}

// NewEngine creates an Engine using functional options.
func NewEngine(opts ...Option) *Engine {
	cfg := engineConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{cfg: cfg}
}

// Merge substitutes data into the template at templatePath and returns the
// path of the produced .odt/.ods file. The caller owns the produced file;
// everything else the session created is removed before Merge returns.
//
// Per-placeholder failures (malformed descriptors, non-sequence group
// values, undecodable file payloads) remove the offending placeholder and
// are logged; the merge still produces a document.
func (e *Engine) Merge(templatePath string, data map[string]any) (string, error) {
	s, err := e.newSession(templatePath)
	if err != nil {
		return "", err
	}
	defer s.Close()

	singles, groups := s.scan()
	s.bindSingles(data, singles)
	s.bindGroups(data, groups)
	return s.repack()
}

// Describe parses the template at templatePath without modifying it and
// returns a textual description of its implied API in the requested kind.
func (e *Engine) Describe(templatePath string, kind DescribeKind) (string, error) {
	tmpl, err := e.Template(templatePath)
	if err != nil {
		return "", err
	}
	switch kind {
	case DescribeOpenAPI:
		return schema.Document(e.cfg.host, []string{tmpl.OpenAPI()}), nil
	case DescribeYAML:
		return schema.YAMLDocument(e.cfg.host, []string{tmpl.YAML()}), nil
	case DescribeSample:
		return schema.SampleDocument(tmpl.Sample()), nil
	}
	return "", fmt.Errorf("mergeodf: unknown describe kind %q", kind)
}

// Template scans the template at templatePath and returns its variable
// schema. The template file and its source directory are not altered.
func (e *Engine) Template(templatePath string) (*schema.Template, error) {
	s, err := e.newSession(templatePath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	singles, groups := s.scan()
	return s.template(singles, groups), nil
}
