// Command mergeodf-mcp is an MCP (Model Context Protocol) server that
// exposes ODF report merging to AI assistants.
//
// # Installation
//
//	go install github.com/OSSII/oxool-module-mergeodf/cmd/mergeodf-mcp@latest
//
// # Available Tools
//
//   - merge_template: merge a JSON data object into a .ott/.ots template
//   - describe_template: emit OpenAPI/sample/YAML descriptions
//   - list_templates: list the registered templates (with -data)
//
// # Available Resources
//
//   - odf://schema?path=... : OpenAPI description
//   - odf://sample?path=... : inline request body sample
//   - odf://yaml?path=...   : YAML description
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	mergeodf "github.com/OSSII/oxool-module-mergeodf"
	"github.com/OSSII/oxool-module-mergeodf/mcp"
	"github.com/OSSII/oxool-module-mergeodf/registry"

	_ "modernc.org/sqlite"
)

func main() {
	dataDir := flag.String("data", "", "registry data directory (enables list_templates)")
	flag.Parse()

	engine := mergeodf.NewEngine()

	var store *registry.Store
	if *dataDir != "" {
		var err error
		store, err = registry.Open(
			filepath.Join(*dataDir, "data.db"),
			filepath.Join(*dataDir, "repository"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mergeodf-mcp: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	server := mcp.NewServer()
	mcp.RegisterTools(server, engine, store)
	mcp.RegisterResources(server, engine)

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mergeodf-mcp: %v\n", err)
		os.Exit(1)
	}
}
