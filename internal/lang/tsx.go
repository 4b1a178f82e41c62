package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       TSX,
		FileExtensions: []string{".tsx"},
		Grammar: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
		},
		DefinitionQuery: typescriptDefinitionQuery,
		ReferenceQuery:  typescriptReferenceQuery,
	})
}
