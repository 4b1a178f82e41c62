package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

func init() {
	Register(&Spec{
		Language:          Rust,
		FileExtensions:    []string{".rs"},
		Grammar:           func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_rust.Language()) },
		PackageIndicators: []string{"Cargo.toml"},
		DefinitionQuery: `
			(function_item name: (identifier) @definition.function.name) @definition.function
			(struct_item name: (type_identifier) @definition.class.name) @definition.class
			(enum_item name: (type_identifier) @definition.class.name) @definition.class
			(trait_item name: (type_identifier) @definition.interface.name) @definition.interface
			(type_item name: (type_identifier) @definition.othertype.name) @definition.othertype

			(use_declaration argument: (identifier) @reference.import.source) @definition.import
			(use_declaration argument: (scoped_identifier) @reference.import.source) @definition.import
		`,
		ReferenceQuery: `
			(call_expression function: (identifier) @reference.call.name) @reference.call
			(call_expression function: (field_expression field: (field_identifier) @reference.call.name)) @reference.call
			(type_identifier) @reference.typeref.name
		`,
	})
}
