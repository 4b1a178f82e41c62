package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       TypeScript,
		FileExtensions: []string{".ts"},
		Grammar: func() *tree_sitter.Language {
			return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
		},
		DefinitionQuery: typescriptDefinitionQuery,
		ReferenceQuery:  typescriptReferenceQuery,
	})
}

// Shared between .ts and .tsx: the TSX grammar is a superset of the
// TypeScript grammar's relevant node kinds for declarations and calls.
const typescriptDefinitionQuery = `
	(function_declaration name: (identifier) @definition.function.name) @definition.function
	(method_definition name: (property_identifier) @definition.method.name) @definition.method

	(class_declaration
		name: (type_identifier) @definition.class.name
		(class_heritage
			(extends_clause value: (identifier) @definition.class.base)?
			(implements_clause (type_identifier) @definition.class.base)?)?) @definition.class

	(interface_declaration
		name: (type_identifier) @definition.interface.name
		(extends_type_clause (type_identifier) @definition.interface.base)?) @definition.interface

	(type_alias_declaration name: (type_identifier) @definition.othertype.name) @definition.othertype
	(enum_declaration name: (identifier) @definition.othertype.name) @definition.othertype

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
`

const typescriptReferenceQuery = `
	(call_expression function: (identifier) @reference.call.name) @reference.call
	(call_expression function: (member_expression
		object: (identifier) @reference.call.owner
		property: (property_identifier) @reference.call.name)) @reference.call
	(new_expression constructor: (identifier) @reference.call.name) @reference.call

	(assignment_expression right: (identifier) @reference.assign_rhs.name)
	(binary_expression left: (identifier) @reference.binop.name right: (identifier) @reference.binop.name)

	(type_annotation (type_identifier) @reference.typeref.name)
	(type_identifier) @reference.typeref.name
`
