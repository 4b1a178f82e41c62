package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       JavaScript,
		FileExtensions: []string{".js", ".jsx", ".mjs"},
		Grammar:        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_javascript.Language()) },
		DefinitionQuery: `
			(function_declaration name: (identifier) @definition.function.name) @definition.function
			(method_definition name: (property_identifier) @definition.method.name) @definition.method

			(class_declaration
				name: (identifier) @definition.class.name
				(class_heritage (identifier) @definition.class.base)?) @definition.class

			(variable_declarator name: (identifier) @definition.variable.name) @definition.variable

			(import_statement
				source: (string) @reference.import.source
				(import_clause (identifier) @reference.import.alias)?) @definition.import
			(import_statement
				source: (string) @reference.import.source
				(import_clause (namespace_import (identifier) @reference.import.alias))) @definition.import
			(import_statement
				source: (string) @reference.import.source
				(import_clause (named_imports (import_specifier
					name: (identifier) @reference.import.symbol
					alias: (identifier)? @reference.import.alias)))) @definition.import
		`,
		ReferenceQuery: `
			(call_expression function: (identifier) @reference.call.name) @reference.call
			(call_expression function: (member_expression
				object: (identifier) @reference.call.owner
				property: (property_identifier) @reference.call.name)) @reference.call
			(new_expression constructor: (identifier) @reference.call.name) @reference.call

			(assignment_expression right: (identifier) @reference.assign_rhs.name)
			(binary_expression left: (identifier) @reference.binop.name right: (identifier) @reference.binop.name)
		`,
	})
}
