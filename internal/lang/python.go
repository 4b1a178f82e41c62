package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

func init() {
	Register(&Spec{
		Language:          Python,
		FileExtensions:    []string{".py"},
		Grammar:           func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_python.Language()) },
		PackageIndicators: []string{"__init__.py"},
		DefinitionQuery: `
			(function_definition name: (identifier) @definition.function.name) @definition.function

			(class_definition
				name: (identifier) @definition.class.name
				superclasses: (argument_list (identifier) @definition.class.base)?) @definition.class

			(assignment left: (identifier) @definition.variable.name) @definition.variable

			(import_statement name: (dotted_name) @reference.import.source) @definition.import
			(import_statement name: (aliased_import
				name: (dotted_name) @reference.import.source
				alias: (identifier) @reference.import.alias)) @definition.import
			(import_from_statement
				module_name: (dotted_name) @reference.import.source
				name: (dotted_name) @reference.import.symbol) @definition.import
			(import_from_statement
				module_name: (dotted_name) @reference.import.source
				name: (aliased_import
					name: (dotted_name) @reference.import.symbol
					alias: (identifier) @reference.import.alias)) @definition.import
		`,
		ReferenceQuery: `
			(call function: (identifier) @reference.call.name) @reference.call
			(call function: (attribute
				object: (identifier) @reference.call.owner
				attribute: (identifier) @reference.call.name)) @reference.call

			(argument_list (identifier) @reference.arg.name)
			(keyword_argument value: (identifier) @reference.kwarg.name)
			(assignment right: (identifier) @reference.assign_rhs.name)
			(comparison_operator (identifier) @reference.compare.name)
			(binary_operator left: (identifier) @reference.binop.name right: (identifier) @reference.binop.name)

			(type (identifier) @reference.typeref.name)
		`,
	})
}
