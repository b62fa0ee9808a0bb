// Package sqltoken turns SQL script lines into a typed, nesting-aware token
// stream used by the code block resolver and the completion classifier.
package sqltoken

import "fmt"

// Type is the lexical class of a token.
type Type int

const (
	String Type = iota + 1
	Keyword
	Identifier
	QuotedIdentifier
	Operator
	OpenParen
	CloseParen
	Delimiter
	PredefinedFunction
	BlockKeyword
	ChoiceKeyword
	Number
	Comment
	QuotedComment
)

var typeNames = map[Type]string{
	String:             "string",
	Keyword:            "keyword",
	Identifier:         "identifier",
	QuotedIdentifier:   "quoted-identifier",
	Operator:           "operator",
	OpenParen:          "open-paren",
	CloseParen:         "close-paren",
	Delimiter:          "delimiter",
	PredefinedFunction: "predefined-function",
	BlockKeyword:       "block-keyword",
	ChoiceKeyword:      "choice-keyword",
	Number:             "number",
	Comment:            "comment",
	QuotedComment:      "quoted-comment",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// MarshalText lets token types appear by name in JSON output.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsKeyword reports whether t is any of the keyword classes.
func (t Type) IsKeyword() bool {
	return t == Keyword || t == BlockKeyword || t == ChoiceKeyword
}

// IsParen reports whether t is an opening or closing parenthesis.
func (t Type) IsParen() bool {
	return t == OpenParen || t == CloseParen
}

// IsComment reports whether t is a line or block comment.
func (t Type) IsComment() bool {
	return t == Comment || t == QuotedComment
}

// Token is a single lexical unit of a script. Offsets are absolute byte
// offsets into the document; End is exclusive.
type Token struct {
	Offset int    `json:"offset"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Lower  string `json:"lower"`
	Type   Type   `json:"type"`
	Line   int    `json:"line"`
	Column int    `json:"column"`

	NestingID NestingID `json:"nestingId"`

	// Group is set on parenthesis tokens to the id of the group they delimit.
	Group NestingID `json:"group,omitempty"`

	// Collapsed marks a placeholder standing in for a whole parenthesized group.
	Collapsed bool `json:"collapsed,omitempty"`
}

// Is reports whether the token's normalized text equals lower.
func (t *Token) Is(lower string) bool {
	return t != nil && t.Lower == lower
}

// IsAny reports whether the token's normalized text is one of words.
func (t *Token) IsAny(words ...string) bool {
	if t == nil {
		return false
	}
	for _, w := range words {
		if t.Lower == w {
			return true
		}
	}
	return false
}

// Contains reports whether offset lies within [Offset, End].
func (t *Token) Contains(offset int) bool {
	return t != nil && t.Offset <= offset && offset <= t.End
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q@%d)", t.Type, t.Text, t.Offset)
}

// InvariantError reports a token stream that violates ordering rules.
type InvariantError struct {
	Index   int
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("token stream invariant violated at %d: %s", e.Index, e.Message)
}

// Validate checks that tokens are strictly offset-ordered, non-overlapping
// and non-empty.
func Validate(tokens []Token) error {
	for i, t := range tokens {
		if t.End <= t.Offset {
			return &InvariantError{Index: i, Message: "empty or inverted token"}
		}
		if i > 0 && t.Offset < tokens[i-1].End {
			return &InvariantError{Index: i, Message: "token overlaps its predecessor"}
		}
	}
	return nil
}
