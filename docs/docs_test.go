package docs

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"fundamental-analyzer/internal/domain"

	"github.com/swaggo/swag"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if SwaggerInfo.Title == "" {
		t.Fatal("swagger info missing title")
	}
}

func TestSwaggerDocListsRoutes(t *testing.T) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	for _, route := range []string{`"/predict/{sector}"`, `"/"`} {
		if !strings.Contains(doc, route) {
			t.Fatalf("expected %s in swagger doc", route)
		}
	}
}

func TestSwaggerSectorEnumMatchesSupportedSectors(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	var doc struct {
		Paths map[string]map[string]struct {
			Parameters []struct {
				Name string   `json:"name"`
				Enum []string `json:"enum"`
			} `json:"parameters"`
		} `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("parse doc: %v", err)
	}

	var got []string
	for _, p := range doc.Paths["/predict/{sector}"]["post"].Parameters {
		if p.Name == "sector" {
			got = append(got, p.Enum...)
		}
	}
	want := make([]string, 0, len(domain.SupportedSectors))
	for _, s := range domain.SupportedSectors {
		want = append(want, s.String())
	}
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sector enum %v does not match supported sectors %v", got, want)
	}
}
