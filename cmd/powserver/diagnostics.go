package main

import (
	"encoding/json"
	"net/http"

	"github.com/ezex-io/actorfiber/pipeline"
	"github.com/ezex-io/actorfiber/registry"
)

type diagnosticsResponse struct {
	RegisteredThreads []string `json:"registered_threads"`
	ThreadCount       int      `json:"thread_count"`
	OpenPipelines     []string `json:"open_pipelines"`
}

// diagnosticsHandler reports the names in the process-wide named registry
// and, of those names, the ones that also have an open pipeline registered
// under the same name. Pipelines registered under any other name are not
// listed. It is read-only: no operation here mutates substrate state.
func diagnosticsHandler(pipelines *pipeline.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := registry.Names()

		open := make([]string, 0, len(names))
		for _, name := range names {
			if p, ok := pipelines.Locate(name); ok && !p.IsClosed() {
				open = append(open, name)
			}
		}

		resp := diagnosticsResponse{
			RegisteredThreads: names,
			ThreadCount:       registry.Len(),
			OpenPipelines:     open,
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
