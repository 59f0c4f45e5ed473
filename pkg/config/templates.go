package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
)

//go:embed templates.schema.json
var templatesSchemaJSON string

const templatesSchemaURL = "https://profitpulse.dev/schemas/cost-templates.json"

var templatesSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(templatesSchemaURL, strings.NewReader(templatesSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(templatesSchemaURL)
})

// LoadTemplates reads a JSON cost template file.
func LoadTemplates(path string) ([]finance.CostTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	templates, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return templates, nil
}

// ParseTemplates validates data against the template schema and decodes it.
// The schema checks document shape only; templates with unknown types or
// unparsable amounts still decode and are later ignored by evaluation.
func ParseTemplates(data []byte) ([]finance.CostTemplate, error) {
	schema, err := templatesSchema()
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid template JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid template document: %w", err)
	}
	var templates []finance.CostTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return templates, nil
}
