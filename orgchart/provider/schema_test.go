package provider

import (
	"reflect"
	"testing"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

func TestGenerateSchema_StrictAndNullable(t *testing.T) {
	t.Parallel()

	s := GenerateSchema[orgchart.ConsolidationResult]("parent_id")
	if _, ok := s["$schema"]; ok {
		t.Fatalf("$schema should be stripped")
	}
	if s["additionalProperties"] != false {
		t.Fatalf("additionalProperties=%v, want false", s["additionalProperties"])
	}
	wantTop := []string{"duplicate_resolutions", "entities", "hierarchy_notes"}
	if got := s["required"]; !reflect.DeepEqual(got, wantTop) {
		t.Fatalf("required=%v, want %v", got, wantTop)
	}

	props := s["properties"].(map[string]interface{})
	items := props["entities"].(map[string]interface{})["items"].(map[string]interface{})
	if items["additionalProperties"] != false {
		t.Fatalf("entity items must be closed")
	}
	wantEntity := []string{"confidence", "id", "name", "original_ids", "parent_id", "type"}
	if got := items["required"]; !reflect.DeepEqual(got, wantEntity) {
		t.Fatalf("entity required=%v, want %v", got, wantEntity)
	}

	parent := items["properties"].(map[string]interface{})["parent_id"].(map[string]interface{})
	if got, want := parent["type"], []interface{}{"string", "null"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("parent_id type=%v, want %v", got, want)
	}
	name := items["properties"].(map[string]interface{})["name"].(map[string]interface{})
	if name["type"] != "string" {
		t.Fatalf("name type=%v, want string", name["type"])
	}
}
