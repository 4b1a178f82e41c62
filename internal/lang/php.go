package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       PHP,
		FileExtensions: []string{".php"},
		Grammar:        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHPOnly()) },
		DefinitionQuery: `
			(function_definition name: (name) @definition.function.name) @definition.function
			(method_declaration name: (name) @definition.method.name) @definition.method

			(class_declaration
				name: (name) @definition.class.name
				(base_clause (name) @definition.class.base)?) @definition.class
			(interface_declaration name: (name) @definition.interface.name) @definition.interface
			(trait_declaration name: (name) @definition.interface.name) @definition.interface
		`,
		ReferenceQuery: `
			(function_call_expression function: (name) @reference.call.name) @reference.call
			(member_call_expression name: (name) @reference.call.name) @reference.call
			(named_type (name) @reference.typeref.name)
		`,
	})
}
