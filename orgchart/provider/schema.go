package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a JSON schema that satisfies OpenAI strict structured output:
// every object closed and every property required. Properties named in nullable get "null"
// added to their type, which is how strict mode expresses an optional value.
func GenerateSchema[T any](nullable ...string) map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	delete(schemaObj, "$schema")
	delete(schemaObj, "$id")
	ensureOpenAICompliance(schemaObj)
	if len(nullable) > 0 {
		names := make(map[string]struct{}, len(nullable))
		for _, n := range nullable {
			names[n] = struct{}{}
		}
		allowNull(schemaObj, names)
	}
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func ensureOpenAICompliance(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			sort.Strings(requiredFields)
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureOpenAICompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(additionalProps)
	}
}

func allowNull(schema map[string]interface{}, names map[string]struct{}) {
	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for name, prop := range properties {
			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}
			if _, want := names[name]; want {
				if t, ok := propMap[typeKey].(string); ok {
					propMap[typeKey] = []interface{}{t, "null"}
				}
			}
			allowNull(propMap, names)
		}
	}
	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		allowNull(items, names)
	}
}
