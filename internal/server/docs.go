package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

// setupDocsRoutes serves the OpenAPI contract for API consumers.
func (s *Server) setupDocsRoutes(r *mux.Router) {
	r.HandleFunc("/docs/openapi.yaml", s.handleOpenAPISpec).Methods("GET")
	r.HandleFunc("/docs/openapi.json", s.handleOpenAPISpec).Methods("GET")
}

// handleOpenAPISpec serves the OpenAPI specification as YAML or JSON.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	specPath := "docs/openapi.yaml"
	if s.config.Validation != nil && s.config.Validation.SpecPath != "" {
		specPath = s.config.Validation.SpecPath
	}

	yamlData, err := os.ReadFile(specPath)
	if err != nil {
		http.Error(w, "OpenAPI spec not found", http.StatusNotFound)
		return
	}

	if strings.HasSuffix(r.URL.Path, ".json") {
		var spec interface{}
		if err := yaml.Unmarshal(yamlData, &spec); err != nil {
			http.Error(w, "Error parsing OpenAPI spec", http.StatusInternalServerError)
			return
		}

		jsonData, err := json.MarshalIndent(convertYAMLKeys(spec), "", "  ")
		if err != nil {
			http.Error(w, "Error converting to JSON", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Write(yamlData)
}

// convertYAMLKeys rewrites yaml.v2's map[interface{}]interface{} trees into
// the string-keyed maps encoding/json requires.
func convertYAMLKeys(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(v))
		for key, val := range v {
			if k, ok := key.(string); ok {
				converted[k] = convertYAMLKeys(val)
			}
		}
		return converted
	case []interface{}:
		for i := range v {
			v[i] = convertYAMLKeys(v[i])
		}
		return v
	default:
		return v
	}
}
