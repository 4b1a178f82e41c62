package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

func init() {
	Register(&Spec{
		Language:            Go,
		FileExtensions:      []string{".go"},
		Grammar:             func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_go.Language()) },
		SameDirectoryLookup: true,
		DefinitionQuery: `
			(function_declaration name: (identifier) @definition.function.name) @definition.function

			(method_declaration
				receiver: (parameter_list
					(parameter_declaration type: [
						(type_identifier) @definition.method.receiver_type
						(pointer_type (type_identifier) @definition.method.receiver_type)
					]))
				name: (field_identifier) @definition.method.name) @definition.method

			(type_declaration (type_spec
				name: (type_identifier) @definition.class.name
				type: (struct_type))) @definition.class

			(type_declaration (type_spec
				name: (type_identifier) @definition.interface.name
				type: (interface_type))) @definition.interface

			(type_declaration (type_spec
				name: (type_identifier) @definition.othertype.name
				type: [
					(pointer_type)
					(slice_type)
					(array_type)
					(map_type)
					(function_type)
					(channel_type)
					(qualified_type)
					(type_identifier)
				])) @definition.othertype

			(var_declaration (var_spec name: (identifier) @definition.variable.name)) @definition.variable
			(const_declaration (const_spec name: (identifier) @definition.variable.name)) @definition.variable

			(import_spec
				path: (interpreted_string_literal) @reference.import.source
				name: (package_identifier)? @reference.import.alias) @definition.import
		`,
		ReferenceQuery: `
			(call_expression function: (identifier) @reference.call.name) @reference.call
			(call_expression function: (selector_expression
				operand: (identifier) @reference.call.owner
				field: (field_identifier) @reference.call.name)) @reference.call

			(assignment_statement right: (expression_list (identifier) @reference.assign_rhs.name))
			(short_var_declaration right: (expression_list (identifier) @reference.assign_rhs.name))

			(binary_expression left: (identifier) @reference.binop.name right: (identifier) @reference.binop.name)

			(field_declaration type: (type_identifier) @reference.inherit.name !name) @reference.inherit
			(field_declaration type: (pointer_type (type_identifier) @reference.inherit.name) !name) @reference.inherit

			(type_identifier) @reference.typeref.name
		`,
	})
}
