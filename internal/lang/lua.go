package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_lua "github.com/tree-sitter-grammars/tree-sitter-lua/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       Lua,
		FileExtensions: []string{".lua"},
		Grammar:        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_lua.Language()) },
		DefinitionQuery: `
			(function_declaration name: (identifier) @definition.function.name) @definition.function
			(function_declaration name: (dot_index_expression field: (identifier) @definition.method.name)) @definition.method
			(assignment_statement
				(variable_list name: (identifier) @definition.variable.name)
				(expression_list value: (function_definition))) @definition.function
		`,
		ReferenceQuery: `
			(function_call name: (identifier) @reference.call.name) @reference.call
			(function_call name: (dot_index_expression field: (identifier) @reference.call.name)) @reference.call
		`,
	})
}
