package tools

import (
	"sort"
	"strings"

	"github.com/stitchagent/stitch/internal/llm"
)

// toolDoc holds a tool's documentation with its sort order
type toolDoc struct {
	order   int
	section string
}

// CategoryHeaders defines the section headers for each category
var CategoryHeaders = map[string]string{
	"filesystem": "## File Tools Reference",
	"shell":      "## Shell Tool",
}

// promptCategories is the fixed emission order for prompt sections
var promptCategories = []string{"filesystem", "shell"}

// Registry manages enabled tools
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Enable adds a tool to the registry (makes it available for use)
func (r *Registry) Enable(t Tool) {
	r.tools[t.Name()] = t
}

// Disable removes a tool from the registry
func (r *Registry) Disable(name string) {
	delete(r.tools, name)
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Specs returns OpenAI-compatible tool specs for all registered tools.
// Names are sorted for deterministic ordering, which keeps prompt caches
// stable across runs.
func (r *Registry) Specs() []llm.ToolSpec {
	names := r.ListTools()

	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		spec := llm.ToolSpec{
			Type: "function",
		}
		spec.Function.Name = tool.Name()
		spec.Function.Description = tool.Description()
		spec.Function.Parameters = tool.JSONSchema()

		specs = append(specs, spec)
	}

	return specs
}

// All returns all registered tools
func (r *Registry) All() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// PromptSections returns documentation for all registered tools, grouped by category
func (r *Registry) PromptSections() map[string][]toolDoc {
	sections := make(map[string][]toolDoc)
	for _, tool := range r.tools {
		category := tool.PromptCategory()
		if section := tool.PromptSection(); section != "" {
			sections[category] = append(sections[category], toolDoc{
				order:   tool.PromptOrder(),
				section: section,
			})
		}
	}
	return sections
}

// GenerateToolPrompt returns complete tool documentation for the system prompt
func (r *Registry) GenerateToolPrompt() string {
	sections := r.PromptSections()
	var sb strings.Builder

	for _, cat := range promptCategories {
		docs, ok := sections[cat]
		if !ok || len(docs) == 0 {
			continue
		}

		if header, ok := CategoryHeaders[cat]; ok {
			sb.WriteString(header)
			sb.WriteString("\n\n")
		}

		sort.Slice(docs, func(i, j int) bool {
			return docs[i].order < docs[j].order
		})

		for _, doc := range docs {
			sb.WriteString(doc.section)
			sb.WriteString("\n\n")
		}

		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// IsEnabled returns true if a tool with the given name is enabled
func (r *Registry) IsEnabled(name string) bool {
	return r.tools[name] != nil
}

// ListTools returns a sorted list of all enabled tool names
func (r *Registry) ListTools() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
