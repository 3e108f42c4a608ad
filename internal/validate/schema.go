package validate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map // schema text -> *jsonschema.Schema

// Args validates tool arguments against the tool's JSON schema. A nil or
// empty schema admits everything. Schema violations are hard validation
// failures: the agent sent arguments the tool cannot interpret.
func Args(toolName string, schema []byte, args map[string]any) Result {
	if len(schema) == 0 {
		return ok()
	}

	compiled, err := compileSchema(toolName, schema)
	if err != nil {
		// A broken schema is a registration bug, not the agent's fault.
		// Admit the call and let the executor's own checks decide.
		res := ok()
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("argument schema for %s failed to compile: %v", toolName, err))
		return res
	}

	// A nil map marshals to JSON null, which no object schema accepts.
	// Tools that take no arguments are routinely called without any.
	if args == nil {
		args = map[string]any{}
	}

	// Round-trip through JSON so typed values (json.Number, structs)
	// become the generic tree the validator expects.
	payload, err := json.Marshal(args)
	if err != nil {
		return fail(fmt.Sprintf("arguments are not JSON-encodable: %v", err))
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fail(fmt.Sprintf("arguments are not valid JSON: %v", err))
	}

	if err := compiled.Validate(decoded); err != nil {
		res := fail(fmt.Sprintf("arguments for %s do not match the tool schema: %v", toolName, err))
		res.Suggestions = append(res.Suggestions,
			"check required fields and value types against the tool description")
		return res
	}
	return ok()
}

func compileSchema(name string, schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, found := schemaCache.Load(key); found {
		if compiled, isSchema := cached.(*jsonschema.Schema); isSchema {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
