// Package main generates JSON Schemas for the gateway's configuration files.
//
// Usage:
//
//	go run ./cmd/schemagen [config|policies]
//
// Examples:
//
//	go run ./cmd/schemagen config > configs/config.schema.json
//	go run ./cmd/schemagen policies > configs/policies.schema.json
package main

import (
	"fmt"
	"os"

	"github.com/your-org/auth-gateway/internal/schema"
)

func main() {
	schemaType := "config" // default
	if len(os.Args) > 1 {
		schemaType = os.Args[1]
	}

	st, ok := schema.ParseSchemaType(schemaType)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown schema type: %s\n", schemaType)
		fmt.Fprintf(os.Stderr, "Available types: config, policies\n")
		os.Exit(1)
	}

	gen := schema.NewGenerator()
	data, err := gen.Generate(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
