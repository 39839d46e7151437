package convo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// blueprintSchema is the minimal contract the apply backend expects: a
// non-empty JSON object.  The blueprint's inner shape is owned by the
// oracle and the Terraform generator, so nothing stricter is asserted here.
const blueprintSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"minProperties": 1
}`

var compiledBlueprintSchema = jsonschema.MustCompileString("blueprint.schema.json", blueprintSchema)

// parseBlueprint validates the raw blueprint attribute.  Absent, unparsable,
// and schema-invalid blueprints all collapse into ErrNoBlueprint: from the
// user's point of view there is no blueprint to deploy.
func parseBlueprint(raw string) (json.RawMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoBlueprint
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBlueprint, err)
	}
	if err := compiledBlueprintSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBlueprint, err)
	}
	return json.RawMessage(raw), nil
}
