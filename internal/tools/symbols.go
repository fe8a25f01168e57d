package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/security"
)

// symbolLanguages maps file extensions to the language used for symbol
// pattern lookup.
var symbolLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rb":   "ruby",
}

type symbolPattern struct {
	kind string
	re   *regexp.Regexp
}

// symbolPatterns are tried in order per line; the first match wins, so
// more specific patterns come first (Go methods before functions, type
// struct before bare type).
var symbolPatterns = map[string][]symbolPattern{
	"go": {
		{"method", regexp.MustCompile(`^(\s*)func\s+\([^)]+\)\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)func\s+(\w+)`)},
		{"struct", regexp.MustCompile(`^(\s*)type\s+(\w+)\s+struct\b`)},
		{"interface", regexp.MustCompile(`^(\s*)type\s+(\w+)\s+interface\b`)},
		{"type", regexp.MustCompile(`^(\s*)type\s+(\w+)`)},
		{"const", regexp.MustCompile(`^(\s*)const\s+(\w+)`)},
		{"variable", regexp.MustCompile(`^(\s*)var\s+(\w+)`)},
	},
	"python": {
		{"class", regexp.MustCompile(`^(\s*)class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)`)},
	},
	"javascript": {
		{"class", regexp.MustCompile(`^(\s*)class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:async\s+)?function\s*\*?\s*(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?(?:function|\()`)},
		{"variable", regexp.MustCompile(`^(\s*)(?:export\s+)?(?:const|let|var)\s+(\w+)`)},
	},
	"typescript": {
		{"class", regexp.MustCompile(`^(\s*)(?:export\s+)?(?:abstract\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^(\s*)(?:export\s+)?interface\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^(\s*)(?:export\s+)?enum\s+(\w+)`)},
		{"type", regexp.MustCompile(`^(\s*)(?:export\s+)?type\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:export\s+)?(?:async\s+)?function\s*\*?\s*(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?(?:function|\()`)},
	},
	"rust": {
		{"struct", regexp.MustCompile(`^(\s*)(?:pub\s+)?struct\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^(\s*)(?:pub\s+)?enum\s+(\w+)`)},
		{"trait", regexp.MustCompile(`^(\s*)(?:pub\s+)?trait\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)(?:pub\s+)?(?:async\s+)?fn\s+(\w+)`)},
		{"type", regexp.MustCompile(`^(\s*)(?:pub\s+)?type\s+(\w+)`)},
	},
	"java": {
		{"class", regexp.MustCompile(`^(\s*)(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^(\s*)(?:public\s+)?interface\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^(\s*)(?:public\s+)?enum\s+(\w+)`)},
	},
	"c": {
		{"struct", regexp.MustCompile(`^(\s*)(?:typedef\s+)?struct\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^(\s*)(?:typedef\s+)?enum\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)\w[\w\s\*]*?\b(\w+)\s*\([^;]*$`)},
	},
	"cpp": {
		{"class", regexp.MustCompile(`^(\s*)class\s+(\w+)`)},
		{"struct", regexp.MustCompile(`^(\s*)(?:typedef\s+)?struct\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^(\s*)enum\s+(?:class\s+)?(\w+)`)},
		{"function", regexp.MustCompile(`^(\s*)\w[\w\s\*:<>]*?\b(\w+)\s*\([^;]*$`)},
	},
	"ruby": {
		{"class", regexp.MustCompile(`^(\s*)class\s+(\w+)`)},
		{"module", regexp.MustCompile(`^(\s*)module\s+(\w+)`)},
		{"method", regexp.MustCompile(`^(\s*)def\s+(\w+)`)},
	},
}

// symbolKindIcons are the single-letter markers used in outline and
// symbol listings.
var symbolKindIcons = map[string]string{
	"class":     "C",
	"struct":    "S",
	"interface": "I",
	"enum":      "E",
	"trait":     "R",
	"module":    "O",
	"type":      "T",
	"function":  "F",
	"method":    "M",
	"const":     "K",
	"variable":  "V",
}

// definitionKindPriority orders find_definition results so the most
// definitive declarations come first.
var definitionKindPriority = map[string]int{
	"class":     0,
	"struct":    0,
	"function":  1,
	"interface": 2,
	"type":      3,
	"method":    4,
	"enum":      5,
	"trait":     5,
	"module":    5,
	"const":     6,
	"variable":  7,
}

// symbolSkipDirs are never descended into when walking for symbols.
var symbolSkipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"vendor":       true,
}

type symbol struct {
	name   string
	kind   string
	line   int
	indent int
	text   string
}

// symbolLanguage returns the language for a path, or "" when the
// extension is not recognized.
func symbolLanguage(path string) string {
	return symbolLanguages[strings.ToLower(filepath.Ext(path))]
}

// scanSymbols extracts symbols from a single file using the language's
// pattern table. Tabs count as 4 spaces for indentation depth.
func scanSymbols(path, language string) ([]symbol, error) {
	patterns := symbolPatterns[language]
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no symbol patterns for language %q", language)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var symbols []symbol
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			indentText := strings.ReplaceAll(m[1], "\t", "    ")
			text := strings.TrimSpace(line)
			if len(text) > 150 {
				text = text[:150] + "..."
			}
			symbols = append(symbols, symbol{
				name:   m[2],
				kind:   p.kind,
				line:   lineNum,
				indent: len(indentText),
				text:   text,
			})
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return symbols, nil
}

// collectSourceFiles walks root and returns files with a recognized
// source extension, honoring gitignore and the skip-dir set.
func collectSourceFiles(root string, ignore *git.Ignore) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (symbolSkipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || symbolLanguage(path) == "" {
			return nil
		}
		if ignore != nil && ignore.IsIgnored(path) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() >= 10*1024*1024 {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

// OutlineTool lists the symbols of one source file as an indented tree.
type OutlineTool struct {
	workDir       string
	pathValidator *security.PathValidator
}

// NewOutlineTool creates an OutlineTool rooted at workDir.
func NewOutlineTool(workDir string) *OutlineTool {
	return &OutlineTool{
		workDir:       workDir,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *OutlineTool) Name() string {
	return "outline"
}

func (t *OutlineTool) RequiresBuildMode() bool {
	return false
}

func (t *OutlineTool) Description() string {
	return `Shows the structure of a source file: classes, functions, methods, types, with line numbers.

PARAMETERS:
- path (required): Path to the source file

Use this to understand a file's shape before reading it in full.
Supported: Go, Python, JavaScript, TypeScript, Rust, Java, C, C++, Ruby.`
}

func (t *OutlineTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The path to the source file to outline",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *OutlineTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	return nil
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "path")

	validPath, err := t.pathValidator.ValidateFile(resolveWithin(t.workDir, path))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	path = validPath

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", path)), nil
		}
		return NewErrorResult(fmt.Sprintf("error accessing file: %s", err)), nil
	}

	language := symbolLanguage(path)
	if language == "" {
		return NewErrorResult(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path))), nil
	}

	symbols, err := scanSymbols(path, language)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}

	relPath, _ := filepath.Rel(t.workDir, path)
	if relPath == "" || strings.HasPrefix(relPath, "..") {
		relPath = path
	}
	if len(symbols) == 0 {
		return NewSuccessResult(fmt.Sprintf("No symbols found in %s", relPath)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Outline of %s (%s):\n", relPath, language)
	for _, sym := range symbols {
		icon := symbolKindIcons[sym.kind]
		if icon == "" {
			icon = "?"
		}
		depth := sym.indent / 4
		fmt.Fprintf(&b, "%s[%s] %s ::%d\n", strings.Repeat("  ", depth+1), icon, sym.name, sym.line)
	}

	return NewSuccessResultWithData(b.String(), map[string]any{
		"file_path":    path,
		"language":     language,
		"symbol_count": len(symbols),
	}), nil
}

// FindSymbolsTool searches the workspace for symbols matching a
// wildcard query.
type FindSymbolsTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewFindSymbolsTool creates a FindSymbolsTool rooted at workDir.
func NewFindSymbolsTool(workDir string) *FindSymbolsTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load() // gitignore is optional

	return &FindSymbolsTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *FindSymbolsTool) Name() string {
	return "find_symbols"
}

func (t *FindSymbolsTool) RequiresBuildMode() bool {
	return false
}

func (t *FindSymbolsTool) Description() string {
	return `Searches the workspace for symbol definitions matching a query.

PARAMETERS:
- query (required): Symbol name, with * and ? wildcards (e.g. "Handle*", "*Config")
- kind (optional): Filter by symbol kind (function, class, struct, interface, type, method)
- path (optional): Directory to search in (default: workspace root)
- max_results (optional): Maximum results to return (default: 100)

Matching is case-insensitive. Results are grouped by kind.`
}

func (t *FindSymbolsTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "Symbol name to search for; * and ? act as wildcards",
				},
				"kind": {
					Type:        genai.TypeString,
					Description: "Filter by symbol kind",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to search in. Defaults to the workspace root.",
				},
				"max_results": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of results",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *FindSymbolsTool) Validate(args map[string]any) error {
	query, ok := GetString(args, "query")
	if !ok || query == "" {
		return NewValidationError("query", "is required")
	}
	return nil
}

func (t *FindSymbolsTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	query, _ := GetString(args, "query")
	kindFilter := strings.ToLower(GetStringDefault(args, "kind", ""))
	searchPath := GetStringDefault(args, "path", t.workDir)
	maxResults := GetIntDefault(args, "max_results", 100)
	if maxResults <= 0 {
		maxResults = 100
	}

	searchPath = resolveWithin(t.workDir, searchPath)
	validPath, err := t.pathValidator.Validate(searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}

	queryRe, err := wildcardRegexp(query)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid query: %s", err)), nil
	}

	type hit struct {
		sym  symbol
		path string
	}
	byKind := make(map[string][]hit)
	total := 0

scan:
	for _, file := range collectSourceFiles(validPath, t.ignore) {
		select {
		case <-ctx.Done():
			break scan
		default:
		}

		symbols, err := scanSymbols(file, symbolLanguage(file))
		if err != nil {
			continue
		}
		for _, sym := range symbols {
			if !queryRe.MatchString(sym.name) {
				continue
			}
			if kindFilter != "" && !strings.Contains(sym.kind, kindFilter) {
				continue
			}
			byKind[sym.kind] = append(byKind[sym.kind], hit{sym: sym, path: file})
			total++
			if total >= maxResults {
				break scan
			}
		}
	}

	if total == 0 {
		return NewSuccessResult(fmt.Sprintf("No symbols matching %q found.", query)), nil
	}

	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	const perKind = 20
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d symbol(s) matching %q:\n", total, query)
	for _, kind := range kinds {
		hits := byKind[kind]
		fmt.Fprintf(&b, "\n%s (%d):\n", kind, len(hits))
		for i, h := range hits {
			if i >= perKind {
				fmt.Fprintf(&b, "  ... and %d more\n", len(hits)-perKind)
				break
			}
			relPath, _ := filepath.Rel(t.workDir, h.path)
			fmt.Fprintf(&b, "  %s  %s:%d\n", h.sym.name, relPath, h.sym.line)
		}
	}

	return NewSuccessResultWithData(b.String(), map[string]any{
		"query":        query,
		"symbol_count": total,
	}), nil
}

// wildcardRegexp compiles a case-insensitive whole-name matcher where
// * matches any run and ? matches one character.
func wildcardRegexp(query string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(query)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return regexp.Compile("(?i)^" + escaped + "$")
}

// FindDefinitionTool locates where a symbol is defined.
type FindDefinitionTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewFindDefinitionTool creates a FindDefinitionTool rooted at workDir.
func NewFindDefinitionTool(workDir string) *FindDefinitionTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load()

	return &FindDefinitionTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *FindDefinitionTool) Name() string {
	return "find_definition"
}

func (t *FindDefinitionTool) RequiresBuildMode() bool {
	return false
}

func (t *FindDefinitionTool) Description() string {
	return `Finds where a symbol (function, type, class, method) is defined.

PARAMETERS:
- symbol (required): Exact symbol name to locate
- path (optional): Directory to search in (default: workspace root)

Matching is case-insensitive. Results are ordered with the most
definitive declarations first.`
}

func (t *FindDefinitionTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"symbol": {
					Type:        genai.TypeString,
					Description: "The symbol name to locate",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to search in. Defaults to the workspace root.",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

func (t *FindDefinitionTool) Validate(args map[string]any) error {
	name, ok := GetString(args, "symbol")
	if !ok || name == "" {
		return NewValidationError("symbol", "is required")
	}
	return nil
}

func (t *FindDefinitionTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "symbol")
	searchPath := GetStringDefault(args, "path", t.workDir)

	searchPath = resolveWithin(t.workDir, searchPath)
	validPath, err := t.pathValidator.Validate(searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}

	type hit struct {
		sym  symbol
		path string
	}
	var hits []hit

scan:
	for _, file := range collectSourceFiles(validPath, t.ignore) {
		select {
		case <-ctx.Done():
			break scan
		default:
		}

		symbols, err := scanSymbols(file, symbolLanguage(file))
		if err != nil {
			continue
		}
		for _, sym := range symbols {
			if strings.EqualFold(sym.name, name) {
				hits = append(hits, hit{sym: sym, path: file})
			}
		}
	}

	if len(hits) == 0 {
		return NewSuccessResult(fmt.Sprintf("No definition of %q found.", name)), nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return kindPriority(hits[i].sym.kind) < kindPriority(hits[j].sym.kind)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d definition(s) of %q:\n", len(hits), name)
	for _, h := range hits {
		relPath, _ := filepath.Rel(t.workDir, h.path)
		fmt.Fprintf(&b, "  [%s] %s:%d: %s\n", h.sym.kind, relPath, h.sym.line, h.sym.text)
	}

	return NewSuccessResultWithData(b.String(), map[string]any{
		"symbol":           name,
		"definition_count": len(hits),
	}), nil
}

func kindPriority(kind string) int {
	if p, ok := definitionKindPriority[kind]; ok {
		return p
	}
	return 10
}

// FindReferencesTool locates every use of a symbol across the
// workspace.
type FindReferencesTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewFindReferencesTool creates a FindReferencesTool rooted at workDir.
func NewFindReferencesTool(workDir string) *FindReferencesTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load()

	return &FindReferencesTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *FindReferencesTool) Name() string {
	return "find_references"
}

func (t *FindReferencesTool) RequiresBuildMode() bool {
	return false
}

func (t *FindReferencesTool) Description() string {
	return `Finds every line that references a symbol.

PARAMETERS:
- symbol (required): Exact symbol name to look up (whole-word match)
- path (optional): Directory to search in (default: workspace root)

LIMITATIONS:
- Maximum 200 references returned
- Text match only; shadowed or same-named symbols are not distinguished`
}

func (t *FindReferencesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"symbol": {
					Type:        genai.TypeString,
					Description: "The symbol name to find references to",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to search in. Defaults to the workspace root.",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

func (t *FindReferencesTool) Validate(args map[string]any) error {
	name, ok := GetString(args, "symbol")
	if !ok || name == "" {
		return NewValidationError("symbol", "is required")
	}
	return nil
}

func (t *FindReferencesTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "symbol")
	searchPath := GetStringDefault(args, "path", t.workDir)

	searchPath = resolveWithin(t.workDir, searchPath)
	validPath, err := t.pathValidator.Validate(searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}

	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid symbol: %s", err)), nil
	}

	const maxReferences = 200
	var b strings.Builder
	count := 0
	fileCount := 0

scan:
	for _, file := range collectSourceFiles(validPath, t.ignore) {
		select {
		case <-ctx.Done():
			break scan
		default:
		}

		matches := grepFileLines(file, re)
		if len(matches) == 0 {
			continue
		}
		fileCount++
		relPath, _ := filepath.Rel(t.workDir, file)
		for _, m := range matches {
			if count >= maxReferences {
				break scan
			}
			b.WriteString(fmt.Sprintf("  %s:%d: %s\n", relPath, m.lineNum, m.line))
			count++
		}
	}

	if count == 0 {
		return NewSuccessResult(fmt.Sprintf("No references to %q found.", name)), nil
	}

	header := fmt.Sprintf("Found %d reference(s) to %q in %d file(s):\n", count, name, fileCount)
	if count >= maxReferences {
		header = fmt.Sprintf("Found %d+ reference(s) to %q in %d file(s) (capped at %d):\n",
			count, name, fileCount, maxReferences)
	}

	return NewSuccessResultWithData(header+b.String(), map[string]any{
		"symbol":          name,
		"reference_count": count,
		"file_count":      fileCount,
	}), nil
}

// grepFileLines returns every matching line of one file, truncated for
// display.
func grepFileLines(path string, re *regexp.Regexp) []grepMatch {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var matches []grepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		text := strings.TrimSpace(line)
		if len(text) > 150 {
			text = text[:150] + "..."
		}
		matches = append(matches, grepMatch{lineNum: lineNum, line: text})
	}
	return matches
}
