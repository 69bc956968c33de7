// Package prompt provides system prompt generation for the agent.
package prompt

import (
	"fmt"
	"strings"

	"github.com/stitchagent/stitch/internal/config"
)

// RegistryInterface defines the registry methods needed for prompt generation.
type RegistryInterface interface {
	IsEnabled(name string) bool
	GenerateToolPrompt() string
}

// Generator builds system prompts based on enabled tools and configuration.
type Generator struct {
	registry RegistryInterface
	cfg      *config.Config
}

// NewGenerator creates a new prompt generator.
func NewGenerator(registry RegistryInterface, cfg *config.Config) *Generator {
	return &Generator{
		registry: registry,
		cfg:      cfg,
	}
}

// GenerateSystemPrompt builds the complete system prompt.
func (g *Generator) GenerateSystemPrompt() string {
	toolDocs := g.registry.GenerateToolPrompt()
	workflowExample := g.generateWorkflowExample()
	capabilities := g.buildCapabilities()

	capabilityStr := "various tools"
	if len(capabilities) > 0 {
		capabilityStr = strings.Join(capabilities, ", ")
	}

	mainTasks := g.buildMainTasks()
	workflowSteps := g.buildWorkflowSteps()

	guidelines := []string{
		"- Only use the tools listed below",
		"- Briefly explain what you're doing when calling a tool",
		"- Focus on completing the user's request efficiently and accurately",
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# ROLE\nYou are a coding assistant with access to tools for: %s.\n\n", capabilityStr))
	sb.WriteString(fmt.Sprintf("Working Directory: %s\n\n", g.cfg.Workspace.Root))

	if len(mainTasks) > 0 {
		sb.WriteString("# MAIN TASKS\n")
		sb.WriteString(strings.Join(mainTasks, "\n"))
		sb.WriteString("\n\n")
	}

	if len(workflowSteps) > 0 {
		sb.WriteString("# WORKFLOW\n")
		sb.WriteString(strings.Join(workflowSteps, "\n"))
		sb.WriteString("\n\n")
	}

	if workflowExample != "" {
		sb.WriteString("# EXAMPLE\n")
		sb.WriteString(workflowExample)
		sb.WriteString("\n")
	}

	sb.WriteString("# GUIDELINES\n")
	sb.WriteString(strings.Join(guidelines, "\n"))
	sb.WriteString("\n\n")

	sb.WriteString("# TOOLS\n")
	sb.WriteString(toolDocs)

	return sb.String()
}

// buildCapabilities returns the list of enabled capabilities.
func (g *Generator) buildCapabilities() []string {
	var capabilities []string
	if g.registry.IsEnabled("Read") {
		capabilities = append(capabilities, "reading files")
	}
	if g.registry.IsEnabled("Edit") {
		capabilities = append(capabilities, "editing files")
	}
	if g.registry.IsEnabled("Shell") {
		capabilities = append(capabilities, "running shell commands")
	}
	return capabilities
}

// buildMainTasks returns the list of main tasks based on enabled tools.
func (g *Generator) buildMainTasks() []string {
	var mainTasks []string
	if g.registry.IsEnabled("Read") {
		mainTasks = append(mainTasks, "- Exploring the codebase")
		mainTasks = append(mainTasks, "- Reading and understanding code")
	}
	if g.registry.IsEnabled("Edit") {
		mainTasks = append(mainTasks, "- Making code modifications")
	}
	if g.registry.IsEnabled("Shell") {
		mainTasks = append(mainTasks, "- Running commands")
	}
	return mainTasks
}

// buildWorkflowSteps returns numbered workflow steps.
func (g *Generator) buildWorkflowSteps() []string {
	hasShell := g.registry.IsEnabled("Shell")
	var workflowSteps []string
	stepNum := 1

	if hasShell {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Search for relevant code using Shell tool (grep)", stepNum))
		stepNum++
	}

	if g.registry.IsEnabled("Read") {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Read files to understand context using Read tool", stepNum))
		stepNum++
	} else if hasShell {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Read files to understand context using Shell tool (cat)", stepNum))
		stepNum++
	}

	if g.registry.IsEnabled("Edit") {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Make changes using Edit tool (always read before editing)", stepNum))
		stepNum++
	} else if hasShell {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Make changes using Shell tool (sed, awk, or echo with redirection)", stepNum))
		stepNum++
	}

	if hasShell {
		workflowSteps = append(workflowSteps, fmt.Sprintf("%d. Run commands using Shell tool to test/verify", stepNum))
	}

	return workflowSteps
}

// generateWorkflowExample generates a worked example for the system prompt
// based on which tools are registered and the configured edit mode.
func (g *Generator) generateWorkflowExample() string {
	hasEdit := g.registry.IsEnabled("Edit")
	hasRead := g.registry.IsEnabled("Read")
	hasShell := g.registry.IsEnabled("Shell")

	if !hasEdit && !hasShell {
		return ""
	}

	editMode := ""
	if hasEdit {
		editMode = g.cfg.Tools.Edit.ResolveMode()
	}

	var sb strings.Builder
	sb.WriteString("**File Editing Example:** Add a retry_count field to TokenStats dataclass.\n\n")
	sb.WriteString("```\n")

	stepNum := 1

	if hasShell {
		sb.WriteString(fmt.Sprintf(`# Step %d: SEARCH - Find where TokenStats is defined
Shell {"command": "grep -rn 'class TokenStats' --include='*.py' ."}
→ app/services/llm/token_tracker.py:9:class TokenStats:

`, stepNum))
		stepNum++
	}

	if hasRead {
		sb.WriteString(fmt.Sprintf(`# Step %d: READ - Load the file content
Read {"path": "app/services/llm/token_tracker.py", "start": 8, "limit": 20}
→    8│@dataclass
     9│class TokenStats:
    10│    """Token usage statistics from LLM provider."""
    11│    prompt_tokens: int = 0
    12│    completion_tokens: int = 0

`, stepNum))
		stepNum++
	} else if hasShell {
		sb.WriteString(fmt.Sprintf(`# Step %d: READ - Load the file content
Shell {"command": "cat -n app/services/llm/token_tracker.py | head -30"}
→    8  @dataclass
     9  class TokenStats:
    10      """Token usage statistics from LLM provider."""
    11      prompt_tokens: int = 0
    12      completion_tokens: int = 0

`, stepNum))
		stepNum++
	}

	if hasEdit {
		switch editMode {
		case "replace":
			sb.WriteString(fmt.Sprintf(`# Step %d: EDIT - Apply the change
Edit {"path": "app/services/llm/token_tracker.py", "old_text": "    completion_tokens: int = 0", "new_text": "    completion_tokens: int = 0\n    retry_count: int = 0"}
→ success: true, diff shows the applied change
# VERIFY: check the diff to confirm the edit landed where intended
`, stepNum))
		default: // "patch"
			sb.WriteString(fmt.Sprintf(`# Step %d: EDIT - Apply the diff
Edit {"path": "app/services/llm/token_tracker.py", "op": "update", "diff": "@@ class TokenStats:\n     prompt_tokens: int = 0\n     completion_tokens: int = 0\n+    retry_count: int = 0"}
→ success: true, diff shows the applied change
# VERIFY: check the diff to confirm the edit landed where intended
`, stepNum))
		}
	} else if hasShell {
		sb.WriteString(fmt.Sprintf(`# Step %d: EDIT - Apply the change using sed
Shell {"command": "sed -i '12a\\    retry_count: int = 0' app/services/llm/token_tracker.py"}
→ (no output on success, read file afterward to verify)
`, stepNum))
	}

	sb.WriteString("```\n\n")
	sb.WriteString("**Key Rules:**\n")
	if hasEdit {
		switch editMode {
		case "replace":
			sb.WriteString("- old_text must EXACTLY match file content (character-for-character)\n")
			sb.WriteString("- old_text must match exactly one place in the file; add surrounding lines to disambiguate, or set \"all\": true to replace every occurrence\n")
			sb.WriteString("- ALWAYS read the file before editing to see exact content\n")
		default: // "patch"
			sb.WriteString("- Context lines (space prefix) should match file content; small drift is tolerated but exact context anchors the hunk reliably\n")
			sb.WriteString("- Include 2-3 lines of context before and after changes\n")
			sb.WriteString("- Use @@ headers with a nearby declaration to anchor hunks in large files\n")
			sb.WriteString("- op \"create\" writes a new file from + lines, op \"delete\" removes a file\n")
		}
		sb.WriteString("- AFTER editing: verify the returned diff shows the intended change and nothing else\n")
	} else if hasShell {
		sb.WriteString("- ALWAYS read the file before editing to understand the structure\n")
		sb.WriteString("- Use sed for line-based edits, or echo/cat for file rewrites\n")
	}
	return sb.String()
}
