package lang

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

func init() {
	Register(&Spec{
		Language:          CPP,
		FileExtensions:    []string{".cpp", ".h", ".hpp", ".cc", ".cxx", ".hxx", ".hh"},
		Grammar:           func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_cpp.Language()) },
		PackageIndicators: []string{"CMakeLists.txt", "Makefile", "conanfile.txt"},
		DefinitionQuery: `
			(function_definition declarator: (function_declarator
				declarator: (identifier) @definition.function.name)) @definition.function
			(function_definition declarator: (function_declarator
				declarator: (qualified_identifier name: (identifier) @definition.function.name))) @definition.function

			(class_specifier
				name: (type_identifier) @definition.class.name
				(base_class_clause (type_identifier) @definition.class.base)?) @definition.class
			(struct_specifier
				name: (type_identifier) @definition.class.name
				(base_class_clause (type_identifier) @definition.class.base)?) @definition.class
			(enum_specifier name: (type_identifier) @definition.othertype.name) @definition.othertype

			(preproc_include path: (string_literal) @reference.import.source) @definition.import
			(preproc_include path: (system_lib_string) @reference.import.source) @definition.import
		`,
		ReferenceQuery: `
			(call_expression function: (identifier) @reference.call.name) @reference.call
			(call_expression function: (field_expression field: (field_identifier) @reference.call.name)) @reference.call
			(type_identifier) @reference.typeref.name
		`,
	})
}
