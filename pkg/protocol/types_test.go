package protocol

import (
	"encoding/json"
	"testing"
)

func TestCompletionItemKind(t *testing.T) {
	kinds := []CompletionItemKind{
		CompletionItemKindKeyword,
		CompletionItemKindFunction,
		CompletionItemKindTable,
		CompletionItemKindColumn,
		CompletionItemKindSchema,
		CompletionItemKindView,
		CompletionItemKindSequence,
		CompletionItemKindEnum,
		CompletionItemKindType,
		CompletionItemKindOperator,
		CompletionItemKindParameter,
		CompletionItemKindSnippet,
		CompletionItemKindReference,
		CompletionItemKindNamespace,
		CompletionItemKindStruct,
		CompletionItemKindModule,
		CompletionItemKindValue,
		CompletionItemKindSetting,
		CompletionItemKindRole,
		CompletionItemKindFile,
		CompletionItemKindFolder,
		CompletionItemKindText,
	}

	for i, kind := range kinds {
		if kind != CompletionItemKind(i+1) {
			t.Errorf("Kind mismatch: got %d, want %d", kind, i+1)
		}
	}
}

func TestCodeBlockParamsDecode(t *testing.T) {
	var params CodeBlockParams
	raw := `{"textDocument":{"uri":"file:///q.sql"},"position":{"line":3,"character":7},"smallestBlock":true}`
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if params.TextDocument.URI != "file:///q.sql" {
		t.Errorf("URI mismatch: got %s", params.TextDocument.URI)
	}
	if params.Position != (Position{Line: 3, Character: 7}) {
		t.Errorf("Position mismatch: got %+v", params.Position)
	}
	if !params.SmallestBlock {
		t.Error("SmallestBlock should be set")
	}
}

func TestCompletionItemOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(CompletionItem{Label: "orders", Kind: CompletionItemKindTable})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	if got, want := string(data), `{"label":"orders","kind":3}`; got != want {
		t.Errorf("Encoding mismatch: got %s, want %s", got, want)
	}
}
