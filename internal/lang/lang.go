// Package lang is the language registry: for each supported language it
// holds the tree-sitter grammar handle plus the declarative definition and
// reference queries the extractor runs against a parsed file.
package lang

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Language is a registry key, one per supported language tag.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Go         Language = "go"
	Java       Language = "java"
	Rust       Language = "rust"
	CPP        Language = "cpp"
	CSharp     Language = "c-sharp"
	PHP        Language = "php"
	Lua        Language = "lua"
)

// AllLanguages returns every registered language tag.
func AllLanguages() []Language {
	seen := map[Language]bool{}
	out := make([]Language, 0, len(registry))
	for _, spec := range registry {
		if !seen[spec.Language] {
			seen[spec.Language] = true
			out = append(out, spec.Language)
		}
	}
	return out
}

// Spec defines a language's grammar, file extensions, and declarative
// extraction queries. Capture names follow the "@definition.<kind>[.<part>]"
// and "@reference.<role>[.<part>]" conventions consumed by the extractor.
type Spec struct {
	Language Language

	FileExtensions []string

	// Grammar returns the tree-sitter grammar for this language. Lazily
	// invoked so grammar bindings are only linked in if referenced.
	Grammar func() *tree_sitter.Language

	// DefinitionQuery captures classes, interfaces, functions, methods,
	// variables, other-types, and import declarations.
	DefinitionQuery string

	// ReferenceQuery captures call/arg/kwarg/assign/binop/compare/typeref
	// identifier mentions inside definition bodies.
	ReferenceQuery string

	// PackageIndicators are file names that mark a directory as an
	// importable package root (e.g. "__init__.py").
	PackageIndicators []string

	// SameDirectoryLookup enables Go-style "unqualified within package"
	// resolution: files in the same directory share a flat symbol scope.
	SameDirectoryLookup bool
}

var registry = map[string]*Spec{}

// Register adds a Spec to the global registry, keyed by file extension.
func Register(spec *Spec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the Spec registered for a file extension (e.g. ".go").
func ForExtension(ext string) *Spec {
	return registry[ext]
}

// ForLanguage returns the Spec for a language tag, or nil if unregistered.
func ForLanguage(l Language) *Spec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language registered for an extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
