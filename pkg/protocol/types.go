package protocol

// Wire types shared by the resolver, the completion classifier and the
// editor transports. Positions are 0-based with byte columns.

// Position represents a position in a text document
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range represents a range in a text document
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit represents a text edit
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// CompletionItemKind represents the kind of completion item
type CompletionItemKind int

const (
	CompletionItemKindKeyword CompletionItemKind = iota + 1
	CompletionItemKindFunction
	CompletionItemKindTable
	CompletionItemKindColumn
	CompletionItemKindSchema
	CompletionItemKindView
	CompletionItemKindSequence
	CompletionItemKindEnum
	CompletionItemKindType
	CompletionItemKindOperator
	CompletionItemKindParameter
	CompletionItemKindSnippet
	CompletionItemKindReference
	CompletionItemKindNamespace
	CompletionItemKindStruct
	CompletionItemKindModule
	CompletionItemKindValue
	CompletionItemKindSetting
	CompletionItemKindRole
	CompletionItemKindFile
	CompletionItemKindFolder
	CompletionItemKindText
)

// InsertTextFormat tells the client how to interpret CompletionItem.TextEdit.
type InsertTextFormat int

const (
	InsertTextFormatPlainText InsertTextFormat = 1
	InsertTextFormatSnippet   InsertTextFormat = 2
)

// CompletionItem represents a completion item
type CompletionItem struct {
	Label            string             `json:"label"`
	Kind             CompletionItemKind `json:"kind"`
	Detail           string             `json:"detail,omitempty"`
	Documentation    string             `json:"documentation,omitempty"`
	TextEdit         *TextEdit          `json:"textEdit,omitempty"`
	SortText         string             `json:"sortText,omitempty"`
	FilterText       string             `json:"filterText,omitempty"`
	InsertTextFormat InsertTextFormat   `json:"insertTextFormat,omitempty"`
}

// CodeBlockParams asks for the statement under a position.
type CodeBlockParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Position      Position `json:"position"`
	SmallestBlock bool     `json:"smallestBlock,omitempty"`
}

// CodeBlock is the statement span returned for execution.
type CodeBlock struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
	// StartLine and EndLine are 1-based and inclusive.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}
