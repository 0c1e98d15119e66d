package posts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const frontMatterSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "date"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "pattern": "\\S"},
    "date": {"type": "string", "minLength": 1},
    "description": {"type": "string"}
  }
}`

func compileFrontMatterSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("frontmatter.json", bytes.NewReader([]byte(frontMatterSchema))); err != nil {
		return nil, err
	}
	return compiler.Compile("frontmatter.json")
}

// validateFrontMatter checks the required keys. The map is JSON encoded
// first so decoder specific types such as time.Time become strings.
func validateFrontMatter(schema *jsonschema.Schema, meta map[string]any) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return fmt.Errorf("decode frontmatter: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return errors.New(strings.Join(leafMessages(validationErr), "; "))
		}
		return err
	}
	return nil
}

func leafMessages(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		location := strings.TrimSpace(err.InstanceLocation)
		if location == "" {
			location = "/"
		}
		return []string{location + ": " + strings.TrimSpace(err.Message)}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, leafMessages(cause)...)
	}
	return out
}
