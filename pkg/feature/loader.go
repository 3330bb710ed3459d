package feature

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a feature catalog:
//
//	features:
//	  - key: library.enabled
//	    type: boolean
//	    default: "true"
type catalogFile struct {
	Features []Definition `yaml:"features"`
}

// LoadDefinitions decodes feature definitions from a YAML document.
// Unknown fields are rejected. The result is not validated; pass it to NewCatalog.
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidDefinition, fmt.Errorf("decode catalog: %w", err))
	}
	return file.Features, nil
}

// LoadDefinitionsFile reads definitions from the YAML file at path.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feature catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadDefinitions(f)
}
