package completion

import (
	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// Category groups candidates for display.
type Category string

const (
	CategoryKeyword          Category = "keyword"
	CategoryTable            Category = "table"
	CategoryView             Category = "view"
	CategoryMaterializedView Category = "mview"
	CategoryColumn           Category = "column"
	CategoryFunction         Category = "function"
	CategoryDataType         Category = "dataType"
	CategoryOperator         Category = "operator"
	CategorySnippet          Category = "snippet"
	CategoryFile             Category = "file"
	CategoryFolder           Category = "folder"
	CategoryValue            Category = "value"
	CategorySetting          Category = "setting"
	CategoryRole             Category = "role"
	CategorySchema           Category = "schema"
	CategoryOther            Category = "other"
)

var kindCategories = map[catalog.Kind]Category{
	catalog.KindTable:            CategoryTable,
	catalog.KindView:             CategoryView,
	catalog.KindMaterializedView: CategoryMaterializedView,
	catalog.KindColumn:           CategoryColumn,
	catalog.KindFunction:         CategoryFunction,
	catalog.KindDataType:         CategoryDataType,
	catalog.KindOperator:         CategoryOperator,
	catalog.KindKeyword:          CategoryKeyword,
	catalog.KindSetting:          CategorySetting,
	catalog.KindRole:             CategoryRole,
	catalog.KindSchema:           CategorySchema,
}

func categoryOf(k catalog.Kind) Category {
	if c, ok := kindCategories[k]; ok {
		return c
	}
	return CategoryOther
}

var protocolKinds = map[Category]protocol.CompletionItemKind{
	CategoryKeyword:          protocol.CompletionItemKindKeyword,
	CategoryTable:            protocol.CompletionItemKindTable,
	CategoryView:             protocol.CompletionItemKindView,
	CategoryMaterializedView: protocol.CompletionItemKindView,
	CategoryColumn:           protocol.CompletionItemKindColumn,
	CategoryFunction:         protocol.CompletionItemKindFunction,
	CategoryDataType:         protocol.CompletionItemKindType,
	CategoryOperator:         protocol.CompletionItemKindOperator,
	CategorySnippet:          protocol.CompletionItemKindSnippet,
	CategoryFile:             protocol.CompletionItemKindFile,
	CategoryFolder:           protocol.CompletionItemKindFolder,
	CategoryValue:            protocol.CompletionItemKindValue,
	CategorySetting:          protocol.CompletionItemKindSetting,
	CategoryRole:             protocol.CompletionItemKindRole,
	CategorySchema:           protocol.CompletionItemKindSchema,
}

// Kind maps the category to a protocol completion kind.
func (c Category) Kind() protocol.CompletionItemKind {
	if k, ok := protocolKinds[c]; ok {
		return k
	}
	return protocol.CompletionItemKindText
}

// Span is a half-open offset range in the document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Candidate is one completion suggestion.
type Candidate struct {
	Label         string   `json:"label"`
	InsertText    string   `json:"insertText"`
	Category      Category `json:"category"`
	Detail        string   `json:"detail,omitempty"`
	Documentation string   `json:"documentation,omitempty"`
	SortKey       string   `json:"sortKey,omitempty"`
	FilterText    string   `json:"filterText,omitempty"`
	// Snippet marks InsertText as containing $0-style tab stops.
	Snippet bool `json:"snippet,omitempty"`
	// Replace is the range InsertText overwrites.
	Replace Span `json:"replace"`
}

func (c Candidate) filterText() string {
	if c.FilterText != "" {
		return c.FilterText
	}
	return c.Label
}

func objectCandidate(o catalog.Object) Candidate {
	c := Candidate{
		Label:         o.Name,
		InsertText:    o.QualifiedIdentifier(),
		Category:      categoryOf(o.Kind),
		Detail:        o.Detail,
		Documentation: o.Documentation,
	}
	switch o.Kind {
	case catalog.KindFunction:
		c.Label = o.Signature()
		c.FilterText = o.Name
		c.InsertText = o.QualifiedIdentifier() + "($0)"
		c.Snippet = true
		if o.Returns != "" {
			c.Detail = "returns " + o.Returns
		}
	case catalog.KindColumn:
		c.InsertText = o.Identifier()
		if c.Detail == "" {
			c.Detail = o.DataType
		}
	case catalog.KindOperator, catalog.KindSetting, catalog.KindDataType:
		c.InsertText = o.Name
	case catalog.KindTable, catalog.KindView, catalog.KindMaterializedView:
		if c.Detail == "" && o.Schema != "" {
			c.Detail = o.Schema + "." + o.Name
		}
	}
	return c
}

func objectCandidates(objs []catalog.Object) []Candidate {
	out := make([]Candidate, 0, len(objs))
	for _, o := range objs {
		out = append(out, objectCandidate(o))
	}
	return out
}

func keywordCandidates(words ...string) []Candidate {
	out := make([]Candidate, 0, len(words))
	for _, w := range words {
		out = append(out, Candidate{
			Label:         w,
			InsertText:    w,
			Category:      CategoryKeyword,
			Documentation: keywordDocs[w],
		})
	}
	return out
}
