package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

func init() {
	Register(&Spec{
		Language:       Java,
		FileExtensions: []string{".java"},
		Grammar:        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_java.Language()) },
		DefinitionQuery: `
			(method_declaration name: (identifier) @definition.function.name) @definition.function
			(constructor_declaration name: (identifier) @definition.function.name) @definition.function

			(class_declaration
				name: (identifier) @definition.class.name
				superclass: (superclass (type_identifier) @definition.class.base)?
				interfaces: (super_interfaces (type_list (type_identifier) @definition.class.base))?) @definition.class

			(interface_declaration name: (identifier) @definition.interface.name) @definition.interface
			(enum_declaration name: (identifier) @definition.othertype.name) @definition.othertype

			(import_declaration (scoped_identifier) @reference.import.source) @definition.import
		`,
		ReferenceQuery: `
			(method_invocation name: (identifier) @reference.call.name) @reference.call
			(object_creation_expression type: (type_identifier) @reference.call.name) @reference.call
			(type_identifier) @reference.typeref.name
		`,
	})
}
