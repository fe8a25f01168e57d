package tools

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/logging"
)

// Registry manages the collection of available tools.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry and logs a warning on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		logging.Warn("failed to register tool", "tool", tool.Name(), "error", err)
	}
}

// Declarations returns all tool declarations.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	declarations := make([]*genai.FunctionDeclaration, 0, len(r.tools))
	for _, tool := range r.tools {
		declarations = append(declarations, tool.Declaration())
	}
	return declarations
}

// ReadOnlyDeclarations returns declarations for tools that do not
// require build mode. Plan and review modes expose only these.
func (r *Registry) ReadOnlyDeclarations() []*genai.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	declarations := make([]*genai.FunctionDeclaration, 0, len(r.tools))
	for _, tool := range r.tools {
		if !tool.RequiresBuildMode() {
			declarations = append(declarations, tool.Declaration())
		}
	}
	return declarations
}

// DeclarationsForMode returns the tool schema set for the current mode.
// Read-only modes see only non-mutating tools.
func (r *Registry) DeclarationsForMode(readOnly bool) []*genai.FunctionDeclaration {
	if readOnly {
		return r.ReadOnlyDeclarations()
	}
	return r.Declarations()
}

// GeminiTools wraps declarations in the genai tool container.
func (r *Registry) GeminiTools(readOnly bool) []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: r.DeclarationsForMode(readOnly),
		},
	}
}

// DefaultRegistry builds a registry with the standard tool set rooted at
// workDir. bashTimeout bounds shell command execution.
func DefaultRegistry(workDir string, bashTimeout time.Duration) *Registry {
	r := NewRegistry()

	r.MustRegister(NewReadTool(workDir))
	r.MustRegister(NewGlobTool(workDir))
	r.MustRegister(NewGrepTool(workDir))
	r.MustRegister(NewTreeTool(workDir))
	r.MustRegister(NewListDirTool(workDir))
	r.MustRegister(NewOutlineTool(workDir))
	r.MustRegister(NewFindSymbolsTool(workDir))
	r.MustRegister(NewFindDefinitionTool(workDir))
	r.MustRegister(NewFindReferencesTool(workDir))
	r.MustRegister(NewWebFetchTool())

	bash := NewBashTool(workDir)
	if bashTimeout > 0 {
		bash.SetTimeout(bashTimeout)
	}
	r.MustRegister(bash)
	r.MustRegister(NewWriteTool(workDir))
	r.MustRegister(NewEditTool(workDir))

	return r
}
