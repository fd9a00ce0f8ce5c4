package llm

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBase = "https://gcsemock.local/schemas/"

// responseSchemas holds one compiled schema per gateway operation.
type responseSchemas map[string]*jsonschema.Schema

func loadSchemas() (responseSchemas, error) {
	entries, err := fs.ReadDir(schemaFiles, "schemas")
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		data, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(schemaBase+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}

	out := make(responseSchemas, len(names))
	for _, name := range names {
		s, err := compiler.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[strings.TrimSuffix(name, ".json")] = s
	}
	return out, nil
}

// decode checks raw against the schema of op and unmarshals it into out.
// Scores are not range-checked; the model's numbers are passed through.
func (s responseSchemas) decode(op, raw string, out any) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return badResponse(op, fmt.Errorf("parse response: %w", err))
	}
	if schema, ok := s[op]; ok {
		if err := schema.Validate(doc); err != nil {
			return badResponse(op, fmt.Errorf("response shape: %w", err))
		}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return badResponse(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
