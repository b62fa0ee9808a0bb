package codeblock

import (
	"strings"

	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
)

// StartingKeywords are the keywords (or keyword phrases) that can begin a
// top-level statement.
var StartingKeywords = []string{
	"SELECT", "REVOKE", "GRANT", "VACUUM", "EXPLAIN", "COPY", "REINDEX",
	"ROLLBACK", "WITH", "ALTER", "SET", "DO", "BEGIN", "CALL", "COMMENT",
	"DROP", "CREATE", "UPDATE", "INSERT INTO", "DELETE FROM", "NOTIFY",
	"LISTEN", "SHOW", "TRUNCATE", "REASSIGN", "CLUSTER", "DELETE", "INSERT",
	"PREPARE", "EXECUTE", "RESET", "TABLE", "REFRESH", "ANALYZE",
}

// statementKeywords open a query whose text can be executed on its own when
// it appears as the first token of a parenthesized group.
var statementKeywords = map[string]bool{
	"select": true, "update": true, "delete": true, "insert": true, "with": true,
}

type phrase struct {
	keyword string
	words   []string
}

var startingPhrases = func() []phrase {
	out := make([]phrase, 0, len(StartingKeywords))
	for _, kw := range StartingKeywords {
		out = append(out, phrase{keyword: kw, words: strings.Fields(strings.ToLower(kw))})
	}
	return out
}()

// KeywordMatch is an occurrence of a starting keyword in a block.
type KeywordMatch struct {
	Keyword string `json:"keyword"`
	Offset  int    `json:"offset"`
	End     int    `json:"end"`
}

// matchStartingKeywords finds starting keywords in tokens, preferring the
// longest phrase at each position, and returns them nearest-last.
func matchStartingKeywords(tokens []sqltoken.Token) []KeywordMatch {
	var out []KeywordMatch
	for i := 0; i < len(tokens); i++ {
		if !tokens[i].Type.IsKeyword() {
			continue
		}
		best := -1
		for p, ph := range startingPhrases {
			if len(ph.words) > len(tokens)-i {
				continue
			}
			ok := true
			for w, word := range ph.words {
				if tokens[i+w].Lower != word || !tokens[i+w].Type.IsKeyword() {
					ok = false
					break
				}
			}
			if ok && (best < 0 || len(ph.words) > len(startingPhrases[best].words)) {
				best = p
			}
		}
		if best < 0 {
			continue
		}
		n := len(startingPhrases[best].words)
		out = append(out, KeywordMatch{
			Keyword: startingPhrases[best].keyword,
			Offset:  tokens[i].Offset,
			End:     tokens[i+n-1].End,
		})
		i += n - 1
	}
	return out
}
