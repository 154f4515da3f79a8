package integration

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	Anonymous:                 true,
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// inputSchema reflects a tool input struct into the JSON schema sent to providers.
// Fields without omitempty are required.
func inputSchema(v interface{}) json.RawMessage {
	s := reflector.Reflect(v)
	s.Version = ""
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("integration: schema for %T: %v", v, err))
	}
	return data
}
