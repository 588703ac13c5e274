// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Tree-sitter node type names shared by the JavaScript and TypeScript
// grammars. TypeScript-only node types are listed at the end.
const (
	nodeProgram              = "program"
	nodeImportStatement      = "import_statement"
	nodeImportClause         = "import_clause"
	nodeNamedImports         = "named_imports"
	nodeImportSpecifier      = "import_specifier"
	nodeNamespaceImport      = "namespace_import"
	nodeString               = "string"
	nodeStringFragment       = "string_fragment"
	nodeExportStatement      = "export_statement"
	nodeExportClause         = "export_clause"
	nodeExportSpecifier      = "export_specifier"
	nodeFunctionDeclaration  = "function_declaration"
	nodeGeneratorFunction    = "generator_function_declaration"
	nodeClassDeclaration     = "class_declaration"
	nodeClassHeritage        = "class_heritage"
	nodeClassBody            = "class_body"
	nodeMethodDefinition     = "method_definition"
	nodeLexicalDeclaration   = "lexical_declaration"
	nodeVariableDeclaration  = "variable_declaration"
	nodeVariableDeclarator   = "variable_declarator"
	nodeArrowFunction        = "arrow_function"
	nodeFunctionExpression   = "function_expression"
	nodeObject               = "object"
	nodeFormalParameters     = "formal_parameters"
	nodeIdentifier           = "identifier"
	nodePropertyIdentifier   = "property_identifier"
	nodePrivatePropertyIdent = "private_property_identifier"
	nodeRestPattern          = "rest_pattern"
	nodeAssignmentPattern    = "assignment_pattern"
	nodeObjectPattern        = "object_pattern"
	nodeArrayPattern         = "array_pattern"
	nodeAsync                = "async"
	nodeStatic               = "static"
	nodeDefault              = "default"
	nodeConst                = "const"
	nodeLet                  = "let"
	nodeVar                  = "var"

	// TypeScript grammar additions.
	nodeTypeIdentifier       = "type_identifier"
	nodeInterfaceDeclaration = "interface_declaration"
	nodeTypeAliasDeclaration = "type_alias_declaration"
	nodeEnumDeclaration      = "enum_declaration"
	nodeAbstractClassDecl    = "abstract_class_declaration"
	nodeRequiredParameter    = "required_parameter"
	nodeOptionalParameter    = "optional_parameter"
)

// grammarFor returns the tree-sitter language for an AST-supported extension,
// or nil when the extension has no full grammar.
func grammarFor(ext string) (*sitter.Language, string) {
	switch ext {
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage(), "javascript"
	case ".ts":
		return typescript.GetLanguage(), "typescript"
	case ".tsx":
		return tsx.GetLanguage(), "typescript"
	default:
		return nil, ""
	}
}

// astState carries per-file context through the AST walk.
type astState struct {
	content  []byte
	lines    []string
	filePath string
	result   *Result
}

func (s *astState) text(n *sitter.Node) string {
	return string(s.content[n.StartByte():n.EndByte()])
}

func (s *astState) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// parseAST parses content with the given grammar and reports whether the
// resulting tree is usable. tree-sitter always yields a tree; "parse failure"
// here means the root contains ERROR or MISSING nodes, which is the signal
// for the repair-and-retry protocol.
func parseAST(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return nil, false
	}
	return tree, !tree.RootNode().HasError()
}

// walkAST extracts symbols from a parsed program tree into state.result.
func walkAST(root *sitter.Node, state *astState) {
	if root == nil {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		extractTopLevel(root.Child(i), state, false)
	}
}

// extractTopLevel dispatches one top-level declaration node.
func extractTopLevel(node *sitter.Node, state *astState, exported bool) {
	if node == nil {
		return
	}

	switch node.Type() {
	case nodeImportStatement:
		extractImportStatement(node, state)

	case nodeExportStatement:
		extractExportStatement(node, state)

	case nodeFunctionDeclaration, nodeGeneratorFunction:
		if sym := extractFunctionDecl(node, state, exported); sym != nil {
			state.result.Symbols = append(state.result.Symbols, sym)
		}

	case nodeClassDeclaration, nodeAbstractClassDecl:
		state.result.Symbols = append(state.result.Symbols, extractClassDecl(node, state, exported)...)

	case nodeInterfaceDeclaration:
		if sym := extractNamedDecl(node, state, SymbolKindInterface, "interface", exported); sym != nil {
			state.result.Symbols = append(state.result.Symbols, sym)
		}

	case nodeTypeAliasDeclaration:
		if sym := extractNamedDecl(node, state, SymbolKindType, "type", exported); sym != nil {
			state.result.Symbols = append(state.result.Symbols, sym)
		}

	case nodeEnumDeclaration:
		if sym := extractNamedDecl(node, state, SymbolKindType, "enum", exported); sym != nil {
			state.result.Symbols = append(state.result.Symbols, sym)
		}

	case nodeLexicalDeclaration, nodeVariableDeclaration:
		state.result.Symbols = append(state.result.Symbols, extractVariableDecl(node, state, exported)...)
	}
}

// extractImportStatement records the import and one symbol per named binding.
func extractImportStatement(node *sitter.Node, state *astState) {
	imp := Import{Line: state.line(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeString:
			imp.Module = stringContent(child, state)
		case nodeImportClause:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case nodeIdentifier:
					imp.Default = state.text(gc)
				case nodeNamespaceImport:
					for k := 0; k < int(gc.ChildCount()); k++ {
						if ggc := gc.Child(k); ggc.Type() == nodeIdentifier {
							imp.Default = state.text(ggc)
						}
					}
				case nodeNamedImports:
					for k := 0; k < int(gc.ChildCount()); k++ {
						ggc := gc.Child(k)
						if ggc.Type() != nodeImportSpecifier {
							continue
						}
						// "foo" or "foo as bar": the local binding is the
						// last identifier in the specifier.
						name := ""
						for l := 0; l < int(ggc.ChildCount()); l++ {
							spec := ggc.Child(l)
							if spec.Type() == nodeIdentifier || spec.Type() == nodeTypeIdentifier {
								name = state.text(spec)
							}
						}
						if name != "" {
							imp.Names = append(imp.Names, name)
						}
					}
				}
			}
		}
	}

	if imp.Module == "" {
		return
	}
	state.result.Imports = append(state.result.Imports, imp)

	bindings := imp.Names
	if imp.Default != "" {
		bindings = append([]string{imp.Default}, bindings...)
	}
	for _, name := range bindings {
		state.result.Symbols = append(state.result.Symbols, &Symbol{
			ID:     MakeSymbolID(state.filePath, name),
			Name:   name,
			Kind:   SymbolKindImport,
			File:   state.filePath,
			Line:   imp.Line,
			Module: imp.Module,
		})
	}
}

// extractExportStatement handles exported declarations, export clauses, and
// default exports.
func extractExportStatement(node *sitter.Node, state *astState) {
	isDefault := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == nodeDefault {
			isDefault = true
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeFunctionDeclaration, nodeGeneratorFunction, nodeClassDeclaration,
			nodeAbstractClassDecl, nodeInterfaceDeclaration, nodeTypeAliasDeclaration,
			nodeEnumDeclaration, nodeLexicalDeclaration, nodeVariableDeclaration:
			extractTopLevel(child, state, true)

		case nodeExportClause:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() != nodeExportSpecifier {
					continue
				}
				name := ""
				for k := 0; k < int(gc.ChildCount()); k++ {
					spec := gc.Child(k)
					if spec.Type() == nodeIdentifier || spec.Type() == nodeTypeIdentifier {
						name = state.text(spec) // "a as b" exports the last identifier
					}
				}
				if name != "" {
					state.result.Symbols = append(state.result.Symbols, &Symbol{
						ID:       MakeSymbolID(state.filePath, name),
						Name:     name,
						Kind:     SymbolKindExport,
						File:     state.filePath,
						Line:     state.line(gc),
						Exported: true,
					})
				}
			}

		case nodeIdentifier:
			// export default someIdentifier
			if isDefault {
				name := state.text(child)
				state.result.Symbols = append(state.result.Symbols, &Symbol{
					ID:       MakeSymbolID(state.filePath, name),
					Name:     name,
					Kind:     SymbolKindExport,
					File:     state.filePath,
					Line:     state.line(node),
					Exported: true,
				})
			}
		}
	}
}

// extractFunctionDecl extracts a function or generator declaration.
func extractFunctionDecl(node *sitter.Node, state *astState, exported bool) *Symbol {
	name := ""
	isAsync := false
	var params []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeIdentifier:
			name = state.text(child)
		case nodeAsync:
			isAsync = true
		case nodeFormalParameters:
			params = extractParams(child, state)
		}
	}
	if name == "" {
		return nil
	}

	sig := "function"
	if isAsync {
		sig = "async function"
	}
	if node.Type() == nodeGeneratorFunction {
		sig += "*"
	}
	sig += " " + name + "(" + strings.Join(params, ", ") + ")"

	return &Symbol{
		ID:            MakeSymbolID(state.filePath, name),
		Name:          name,
		Kind:          SymbolKindFunction,
		File:          state.filePath,
		Line:          state.line(node),
		Params:        params,
		Async:         isAsync,
		Signature:     sig,
		Documentation: docAbove(state.lines, state.line(node)),
		Exported:      exported,
	}
}

// extractClassDecl extracts a class declaration and its methods. The class
// symbol comes first, followed by one method symbol per member.
func extractClassDecl(node *sitter.Node, state *astState, exported bool) []*Symbol {
	name := ""
	extends := ""
	var body *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeIdentifier, nodeTypeIdentifier:
			if name == "" {
				name = state.text(child)
			}
		case nodeClassHeritage:
			extends = heritageName(child, state)
		case nodeClassBody:
			body = child
		}
	}
	if name == "" {
		return nil
	}

	sig := "class " + name
	if extends != "" {
		sig += " extends " + extends
	}

	symbols := []*Symbol{{
		ID:            MakeSymbolID(state.filePath, name),
		Name:          name,
		Kind:          SymbolKindClass,
		File:          state.filePath,
		Line:          state.line(node),
		Signature:     sig,
		Documentation: docAbove(state.lines, state.line(node)),
		Extends:       extends,
		Exported:      exported,
	}}

	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() != nodeMethodDefinition {
				continue
			}
			if sym := extractMethod(child, state, name); sym != nil {
				symbols = append(symbols, sym)
			}
		}
	}
	return symbols
}

// heritageName digs the parent class name out of a class_heritage subtree.
// The JavaScript grammar puts the expression directly under the heritage
// node; the TypeScript grammar wraps it in an extends_clause.
func heritageName(node *sitter.Node, state *astState) string {
	if node == nil {
		return ""
	}
	if node.Type() == nodeIdentifier || node.Type() == nodeTypeIdentifier {
		return state.text(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name := heritageName(node.Child(i), state); name != "" {
			return name
		}
	}
	return ""
}

// extractMethod extracts one method definition, qualified as "Class.method".
func extractMethod(node *sitter.Node, state *astState, className string) *Symbol {
	name := ""
	isAsync := false
	isStatic := false
	var params []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodePropertyIdentifier, nodePrivatePropertyIdent:
			name = state.text(child)
		case nodeAsync:
			isAsync = true
		case nodeStatic:
			isStatic = true
		case nodeFormalParameters:
			params = extractParams(child, state)
		}
	}
	if name == "" {
		return nil
	}

	sig := ""
	if isStatic {
		sig += "static "
	}
	if isAsync {
		sig += "async "
	}
	sig += name + "(" + strings.Join(params, ", ") + ")"

	qualified := className + "." + name
	return &Symbol{
		ID:            MakeSymbolID(state.filePath, qualified),
		Name:          qualified,
		Kind:          SymbolKindMethod,
		File:          state.filePath,
		Line:          state.line(node),
		Params:        params,
		Async:         isAsync,
		Static:        isStatic,
		ClassName:     className,
		Signature:     sig,
		Documentation: docAbove(state.lines, state.line(node)),
	}
}

// extractNamedDecl extracts interface, type alias, and enum declarations.
func extractNamedDecl(node *sitter.Node, state *astState, kind SymbolKind, keyword string, exported bool) *Symbol {
	name := ""
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeTypeIdentifier || child.Type() == nodeIdentifier {
			name = state.text(child)
			break
		}
	}
	if name == "" {
		return nil
	}
	return &Symbol{
		ID:            MakeSymbolID(state.filePath, name),
		Name:          name,
		Kind:          kind,
		File:          state.filePath,
		Line:          state.line(node),
		Signature:     keyword + " " + name,
		Documentation: docAbove(state.lines, state.line(node)),
		Exported:      exported,
	}
}

// extractVariableDecl extracts variable declarators from a const/let/var
// declaration. Arrow-function initializers produce function symbols.
func extractVariableDecl(node *sitter.Node, state *astState, exported bool) []*Symbol {
	declKind := "var"
	var symbols []*Symbol

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeConst, nodeLet, nodeVar:
			declKind = child.Type()
		case nodeVariableDeclarator:
			symbols = append(symbols, extractDeclarator(child, state, declKind, exported)...)
		}
	}
	return symbols
}

// extractDeclarator extracts one "name = value" declarator. Object-literal
// initializers additionally yield one method symbol per member, qualified as
// "name.method".
func extractDeclarator(node *sitter.Node, state *astState, declKind string, exported bool) []*Symbol {
	name := ""
	var fn *sitter.Node
	var obj *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeIdentifier:
			if name == "" {
				name = state.text(child)
			}
		case nodeArrowFunction, nodeFunctionExpression:
			fn = child
		case nodeObject:
			obj = child
		}
	}
	if name == "" {
		return nil
	}

	sym := &Symbol{
		ID:            MakeSymbolID(state.filePath, name),
		Name:          name,
		Kind:          SymbolKindVariable,
		File:          state.filePath,
		Line:          state.line(node),
		Signature:     declKind + " " + name,
		Documentation: docAbove(state.lines, state.line(node)),
		Exported:      exported,
	}

	if fn != nil {
		sym.Kind = SymbolKindFunction
		for i := 0; i < int(fn.ChildCount()); i++ {
			child := fn.Child(i)
			switch child.Type() {
			case nodeAsync:
				sym.Async = true
			case nodeFormalParameters:
				sym.Params = extractParams(child, state)
			case nodeIdentifier:
				// Single arrow parameter without parentheses.
				if len(sym.Params) == 0 {
					sym.Params = []string{state.text(child)}
				}
			}
		}
		arrow := "(" + strings.Join(sym.Params, ", ") + ") => {}"
		if sym.Async {
			arrow = "async " + arrow
		}
		sym.Signature = declKind + " " + name + " = " + arrow
	}

	symbols := []*Symbol{sym}
	if obj != nil {
		for i := 0; i < int(obj.ChildCount()); i++ {
			child := obj.Child(i)
			if child.Type() != nodeMethodDefinition {
				continue
			}
			if method := extractMethod(child, state, name); method != nil {
				symbols = append(symbols, method)
			}
		}
	}
	return symbols
}

// extractParams collects parameter names from a formal_parameters node.
// Default values are dropped, rest parameters keep the "..." marker, and
// destructured patterns reduce to a placeholder name.
func extractParams(node *sitter.Node, state *astState) []string {
	var params []string

	var fromPattern func(n *sitter.Node) string
	fromPattern = func(n *sitter.Node) string {
		if n == nil {
			return ""
		}
		switch n.Type() {
		case nodeIdentifier:
			return state.text(n)
		case nodeObjectPattern, nodeArrayPattern:
			return "arg"
		case nodeRestPattern:
			for i := 0; i < int(n.ChildCount()); i++ {
				if c := n.Child(i); c.Type() == nodeIdentifier {
					return "..." + state.text(c)
				}
			}
			return "...args"
		case nodeAssignmentPattern:
			if left := n.ChildByFieldName("left"); left != nil {
				return fromPattern(left)
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				if name := fromPattern(n.Child(i)); name != "" {
					return name
				}
			}
		case nodeRequiredParameter, nodeOptionalParameter:
			for i := 0; i < int(n.ChildCount()); i++ {
				if name := fromPattern(n.Child(i)); name != "" {
					return name
				}
			}
		}
		return ""
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if name := fromPattern(node.Child(i)); name != "" {
			params = append(params, name)
		}
	}
	return params
}

// stringContent returns a string literal's content without quotes.
func stringContent(node *sitter.Node, state *astState) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == nodeStringFragment {
			return state.text(child)
		}
	}
	text := state.text(node)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}
