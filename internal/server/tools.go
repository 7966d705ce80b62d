package server

import (
	"context"
	"fmt"

	"github.com/knoguchi/graphrag/internal/jobs"
	"github.com/knoguchi/graphrag/internal/service"
)

// Tool is one MCP-callable operation.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	handler     func(ctx context.Context, args map[string]any) (any, error)
}

// ToolRegistry holds the closed set of tools in a stable order.
type ToolRegistry struct {
	svc    *service.Service
	tools  []*Tool
	byName map[string]*Tool
}

// NewToolRegistry builds the registry over the service facade.
func NewToolRegistry(svc *service.Service) *ToolRegistry {
	r := &ToolRegistry{svc: svc, byName: make(map[string]*Tool)}
	r.register()
	return r
}

// Tools returns the tools in registration order.
func (r *ToolRegistry) Tools() []*Tool {
	return r.tools
}

// Names returns the tool names in registration order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	return names
}

// Call invokes a tool by name. Unknown names return an error; the MCP
// layer turns it into a structured tool failure.
func (r *ToolRegistry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return tool.handler(ctx, args)
}

// Known reports whether the registry carries a tool with this name.
func (r *ToolRegistry) Known(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *ToolRegistry) add(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func (r *ToolRegistry) register() {
	r.add(&Tool{
		Name:        "ping",
		Description: "Liveness check. Returns pong and the server version.",
		InputSchema: schema(nil, map[string]any{}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"status": "pong", "version": r.svc.Version()}, nil
		},
	})

	r.add(&Tool{
		Name:        "search",
		Description: "Hybrid search: vector similarity plus knowledge graph traversal.",
		InputSchema: schema([]string{"query"}, map[string]any{
			"query":     prop("string", "Search query text"),
			"n_results": prop("integer", "Number of vector results (default 5)"),
			"max_hops":  prop("integer", "Graph traversal depth (default 2)"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			result, err := r.svc.Search(ctx, argString(args, "query"), argInt(args, "n_results", 0), argInt(args, "max_hops", 2), true)
			if err != nil {
				return nil, err
			}
			vectors, graphs := searchPayload(result)
			return map[string]any{"vector_results": vectors, "graph_results": graphs}, nil
		},
	})

	r.add(&Tool{
		Name:        "concept",
		Description: "Look up a single concept by name.",
		InputSchema: schema([]string{"name"}, map[string]any{
			"name": prop("string", "Concept name, matched case-insensitively"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			c, err := r.svc.Concept(ctx, argString(args, "name"))
			if err != nil {
				return nil, err
			}
			return conceptJSON(c), nil
		},
	})

	r.add(&Tool{
		Name:        "documents",
		Description: "List documents that mention a concept.",
		InputSchema: schema([]string{"concept_name"}, map[string]any{
			"concept_name": prop("string", "Concept name"),
			"limit":        prop("integer", "Maximum documents to return"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			docs, err := r.svc.DocumentsByConcept(ctx, argString(args, "concept_name"), argInt(args, "limit", 0))
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				out = append(out, documentJSON(d))
			}
			return map[string]any{"documents": out}, nil
		},
	})

	r.add(&Tool{
		Name:        "books-by-concept",
		Description: "List books covering a concept, as title, author, and document id.",
		InputSchema: schema([]string{"concept_name"}, map[string]any{
			"concept_name": prop("string", "Concept name"),
			"limit":        prop("integer", "Maximum books to return"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			docs, err := r.svc.DocumentsByConcept(ctx, argString(args, "concept_name"), argInt(args, "limit", 0))
			if err != nil {
				return nil, err
			}
			books := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				books = append(books, map[string]any{
					"title":       d.Title,
					"author":      d.Author,
					"document_id": d.ID,
				})
			}
			return map[string]any{"books": books}, nil
		},
	})

	r.add(&Tool{
		Name:        "related-concepts",
		Description: "Traverse the knowledge graph outward from a concept.",
		InputSchema: schema([]string{"name"}, map[string]any{
			"name":     prop("string", "Concept name"),
			"max_hops": prop("integer", "Traversal depth (default 2)"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			neighbors, err := r.svc.RelatedConcepts(ctx, argString(args, "name"), argInt(args, "max_hops", 2))
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(neighbors))
			for _, n := range neighbors {
				out = append(out, map[string]any{"id": n.ID, "name": n.Name, "relevance_score": n.Score})
			}
			return map[string]any{"related_concepts": out}, nil
		},
	})

	r.add(&Tool{
		Name:        "passages-about-concept",
		Description: "Retrieve stored text passages about a concept.",
		InputSchema: schema([]string{"concept_name"}, map[string]any{
			"concept_name": prop("string", "Concept name"),
			"limit":        prop("integer", "Maximum passages to return (default 5)"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			passages, err := r.svc.Passages(ctx, argString(args, "concept_name"), argInt(args, "limit", 0))
			if err != nil {
				return nil, err
			}
			if passages == nil {
				passages = []service.Passage{}
			}
			return map[string]any{"passages": passages}, nil
		},
	})

	r.add(&Tool{
		Name:        "add_bug",
		Description: "File a bug report into the knowledge base as a background job.",
		InputSchema: schema([]string{"description"}, map[string]any{
			"description": prop("string", "What went wrong"),
			"cause":       prop("string", "Suspected or confirmed cause"),
			"title":       prop("string", "Optional short title"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			jobID, err := r.svc.StartBugJob(argString(args, "description"), argString(args, "cause"), argString(args, "title"), "mcp")
			if err != nil {
				return nil, err
			}
			return map[string]any{"status": "accepted", "job_id": jobID}, nil
		},
	})

	r.add(&Tool{
		Name:        "add-folder",
		Description: "Ingest every matching file in a folder as a background job.",
		InputSchema: schema([]string{"folder_path"}, map[string]any{
			"folder_path": prop("string", "Absolute path of the folder"),
			"recursive":   prop("boolean", "Descend into subfolders (default false)"),
			"file_types":  map[string]any{"type": "array", "items": prop("string", "File extension"), "description": "Extensions to include (default pdf, txt, md)"},
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			jobID, total, err := r.svc.StartFolderJob(jobs.TypeAddFolder, service.FolderRequest{
				FolderPath: argString(args, "folder_path"),
				Recursive:  argBool(args, "recursive"),
				FileTypes:  argStrings(args, "file_types"),
				CreatedBy:  "mcp",
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"status": "accepted", "job_id": jobID, "total_files": total}, nil
		},
	})

	r.add(&Tool{
		Name:        "job-status",
		Description: "Get the status of one background job.",
		InputSchema: schema([]string{"job_id"}, map[string]any{
			"job_id": prop("string", "Job identifier"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			job, ok := r.svc.Jobs().Get(argString(args, "job_id"))
			if !ok {
				return nil, fmt.Errorf("job not found: %s", argString(args, "job_id"))
			}
			return job, nil
		},
	})

	r.add(&Tool{
		Name:        "list-jobs",
		Description: "List background jobs, optionally filtered by status or type.",
		InputSchema: schema(nil, map[string]any{
			"status": prop("string", "Filter by job status"),
			"type":   prop("string", "Filter by job type"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			list := r.svc.Jobs().List(jobs.Filter{
				Status: argString(args, "status"),
				Type:   argString(args, "type"),
			})
			if list == nil {
				list = []*jobs.Job{}
			}
			return map[string]any{"jobs": list}, nil
		},
	})

	r.add(&Tool{
		Name:        "cancel-job",
		Description: "Request cancellation of a queued or running job.",
		InputSchema: schema([]string{"job_id"}, map[string]any{
			"job_id": prop("string", "Job identifier"),
		}),
		handler: func(ctx context.Context, args map[string]any) (any, error) {
			id := argString(args, "job_id")
			if !r.svc.Jobs().Cancel(id) {
				return nil, fmt.Errorf("job not cancellable: %s", id)
			}
			return map[string]any{"status": "cancelled", "job_id": id}, nil
		},
	})
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64: // JSON numbers decode as float64
		return int(v)
	case int:
		return v
	}
	return def
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
