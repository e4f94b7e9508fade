package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	mergeodf "github.com/OSSII/oxool-module-mergeodf"
	"github.com/OSSII/oxool-module-mergeodf/registry"
)

// RegisterTools adds the merge and describe tools to the server. Both
// take template file paths; registry endpoint names are not resolved.
// The store only backs list_templates, which is not registered when the
// store is nil.
func RegisterTools(s *Server, engine *mergeodf.Engine, store *registry.Store) {
	s.AddTool(mergeTemplateTool(engine))
	s.AddTool(describeTemplateTool(engine))
	if store != nil {
		s.AddTool(listTemplatesTool(store))
	}
}

func mergeTemplateTool(engine *mergeodf.Engine) Tool {
	return Tool{
		Name: "merge_template",
		Description: "Merge a JSON data object into an ODF report template (.ott or .ots) " +
			"and return the produced document. Repeating groups are arrays of objects; " +
			"image variables take Base64 payloads.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"template": map[string]any{
					"type":        "string",
					"description": "Path to the template file",
				},
				"data": map[string]any{
					"type":        "object",
					"description": "Variable name to value mapping",
				},
				"outputPath": map[string]any{
					"type":        "string",
					"description": "Optional path to move the produced file to. If omitted, returns base64.",
				},
			},
			"required": []string{"template", "data"},
		},
		Handler: func(args map[string]any) (ToolResult, error) {
			template, ok := args["template"].(string)
			if !ok {
				return ToolResult{}, fmt.Errorf("missing 'template' argument")
			}
			data, ok := args["data"].(map[string]any)
			if !ok {
				return ToolResult{}, fmt.Errorf("missing 'data' argument")
			}

			out, err := engine.Merge(template, data)
			if err != nil {
				return ToolResult{}, fmt.Errorf("merging template: %w", err)
			}

			if outputPath, ok := args["outputPath"].(string); ok && outputPath != "" {
				if err := os.Rename(out, outputPath); err != nil {
					os.Remove(out)
					return ToolResult{}, fmt.Errorf("moving produced file: %w", err)
				}
				return ToolResult{
					Content: []ContentBlock{{
						Type: "text",
						Text: fmt.Sprintf("Document produced: %s", outputPath),
					}},
				}, nil
			}

			payload, err := os.ReadFile(out)
			os.Remove(out)
			if err != nil {
				return ToolResult{}, fmt.Errorf("reading produced file: %w", err)
			}
			return ToolResult{
				Content: []ContentBlock{{
					Type: "text",
					Text: fmt.Sprintf("Document produced (%d bytes). Base64 data:\n%s",
						len(payload), base64.StdEncoding.EncodeToString(payload)),
				}},
			}, nil
		},
	}
}

func describeTemplateTool(engine *mergeodf.Engine) Tool {
	return Tool{
		Name: "describe_template",
		Description: "Describe the variables of an ODF report template as OpenAPI JSON, " +
			"a sample document, or YAML.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"template": map[string]any{
					"type":        "string",
					"description": "Path to the template file",
				},
				"kind": map[string]any{
					"type":        "string",
					"enum":        []string{"openapi", "sample", "yaml"},
					"description": "Output format (default openapi)",
				},
			},
			"required": []string{"template"},
		},
		Handler: func(args map[string]any) (ToolResult, error) {
			template, ok := args["template"].(string)
			if !ok {
				return ToolResult{}, fmt.Errorf("missing 'template' argument")
			}
			kind := mergeodf.DescribeOpenAPI
			if k, ok := args["kind"].(string); ok && k != "" {
				kind = mergeodf.DescribeKind(k)
			}

			out, err := engine.Describe(template, kind)
			if err != nil {
				return ToolResult{}, fmt.Errorf("describing template: %w", err)
			}
			return ToolResult{
				Content: []ContentBlock{{Type: "text", Text: out}},
			}, nil
		},
	}
}

func listTemplatesTool(store *registry.Store) Tool {
	return Tool{
		Name:        "list_templates",
		Description: "List the registered report templates grouped by category.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(args map[string]any) (ToolResult, error) {
			listing, err := store.List()
			if err != nil {
				return ToolResult{}, fmt.Errorf("listing templates: %w", err)
			}
			payload, err := json.MarshalIndent(listing, "", "  ")
			if err != nil {
				return ToolResult{}, fmt.Errorf("encoding listing: %w", err)
			}
			return ToolResult{
				Content: []ContentBlock{{Type: "text", Text: string(payload), MIMEType: "application/json"}},
			}, nil
		},
	}
}
