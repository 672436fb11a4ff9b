package nlp

import (
	_ "embed"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/classification.json
var classificationSchemaJSON string

const classificationSchemaURL = "classification.json"

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(classificationSchemaURL, strings.NewReader(classificationSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(classificationSchemaURL)
}
