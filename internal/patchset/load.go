package patchset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cellmaster/oglpatch/internal/patch"
)

//go:embed patchset.schema.json
var embeddedSchemaJSON []byte

// File is the on-disk shape of a patchset overlay.
type File struct {
	Schema  string             `json:"schema"`
	Version int                `json:"version"`
	Patches []patch.Descriptor `json:"patches"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse embedded patchset schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("patchset.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("register patchset schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("patchset.schema.json")
	})
	return schema, schemaErr
}

// Load reads a descriptor overlay from a JSON file, validates it against the
// embedded schema, and returns the descriptor list. The returned set replaces
// the builtin one entirely; partial overlays are not merged because patch
// order is load-bearing.
func Load(path string) ([]patch.Descriptor, error) {
	// #nosec G304 -- path comes from an explicit CLI flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patchset %s: %w", path, err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse patchset %s: %w", path, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("patchset %s does not match schema: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode patchset %s: %w", path, err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("patchset %s: unsupported version %d", path, file.Version)
	}
	return file.Patches, nil
}
