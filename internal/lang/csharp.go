package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c_sharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       CSharp,
		FileExtensions: []string{".cs"},
		Grammar:        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_c_sharp.Language()) },
		DefinitionQuery: `
			(method_declaration name: (identifier) @definition.function.name) @definition.function
			(constructor_declaration name: (identifier) @definition.function.name) @definition.function

			(class_declaration
				name: (identifier) @definition.class.name
				(base_list (identifier) @definition.class.base)?) @definition.class
			(interface_declaration name: (identifier) @definition.interface.name) @definition.interface
			(enum_declaration name: (identifier) @definition.othertype.name) @definition.othertype

			(using_directive (qualified_name) @reference.import.source) @definition.import
			(using_directive (identifier) @reference.import.source) @definition.import
		`,
		ReferenceQuery: `
			(invocation_expression function: (identifier) @reference.call.name) @reference.call
			(invocation_expression function: (member_access_expression name: (identifier) @reference.call.name)) @reference.call
			(object_creation_expression type: (identifier) @reference.call.name) @reference.call
		`,
	})
}
