// Package completion classifies the grammatical position of the cursor in a
// resolved code block and ranks completion candidates for it.
package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// Options controls a Classifier.
type Options struct {
	// MaxCandidates caps the result; zero means no cap.
	MaxCandidates int
	// LookupTimeout bounds every live lookup.
	LookupTimeout time.Duration
	// StrictInvariants re-panics on internal errors instead of degrading
	// to an empty result.
	StrictInvariants bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxCandidates: 500,
		LookupTimeout: 2 * time.Second,
	}
}

// Classifier runs the matcher chain. It is stateless and safe for
// concurrent use.
type Classifier struct {
	logger   *zap.Logger
	opts     Options
	matchers []matcher
}

// NewClassifier creates a classifier.
func NewClassifier(logger *zap.Logger, opts Options) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultOptions().LookupTimeout
	}
	return &Classifier{
		logger:   logger.With(zap.String("component", "completion")),
		opts:     opts,
		matchers: chain(),
	}
}

// request carries one classification.
type request struct {
	ctx    context.Context
	b      *codeblock.Block
	snap   *catalog.Snapshot
	lookup catalog.LiveLookup
	c      *Classifier

	refs []codeblock.TableRef
}

// matcher recognizes one cursor context. handle may decline by returning
// false, in which case the chain continues.
type matcher struct {
	name   string
	match  func(r *request) bool
	handle func(r *request) ([]Candidate, bool)
}

// Classify returns the candidates for the cursor position of b. snap and
// lookup may be nil.
func (c *Classifier) Classify(ctx context.Context, b *codeblock.Block, snap *catalog.Snapshot, lookup catalog.LiveLookup) (out []Candidate) {
	defer func() {
		if rec := recover(); rec != nil {
			if c.opts.StrictInvariants {
				panic(rec)
			}
			c.logger.Error("Completion failed", zap.Any("panic", rec), zap.Int("cursor", b.Cursor))
			out = nil
		}
	}()

	if err := sqltoken.Validate(b.Tokens); err != nil {
		panic(fmt.Errorf("invalid token stream: %w", err))
	}

	r := &request{ctx: ctx, b: b, snap: snap, lookup: lookup, c: c}
	for _, m := range c.matchers {
		if !m.match(r) {
			continue
		}
		cands, ok := m.handle(r)
		if !ok {
			continue
		}
		c.logger.Debug("Completion matched", zap.String("matcher", m.name), zap.Int("candidates", len(cands)))
		return c.finish(r, cands)
	}
	return c.finish(r, fallback(r))
}

func (c *Classifier) finish(r *request, cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return cands
	}
	start, end := r.b.ReplaceSpan()
	for i := range cands {
		if cands[i].Replace == (Span{}) {
			cands[i].Replace = Span{Start: start, End: end}
		}
	}
	if limit := c.opts.MaxCandidates; limit > 0 && len(cands) > limit {
		// Keep candidates matching the typed word first.
		word := strings.ToLower(r.b.Word())
		sort.SliceStable(cands, func(i, j int) bool {
			return strings.HasPrefix(strings.ToLower(cands[i].filterText()), word) &&
				!strings.HasPrefix(strings.ToLower(cands[j].filterText()), word)
		})
		cands = cands[:limit]
	}
	return cands
}

// Items converts candidates into protocol completion items with ranges in
// b's document.
func (c *Classifier) Items(b *codeblock.Block, cands []Candidate) []protocol.CompletionItem {
	doc := b.Document()
	items := make([]protocol.CompletionItem, 0, len(cands))
	for i, cand := range cands {
		sortText := cand.SortKey
		if sortText == "" {
			sortText = fmt.Sprintf("z%04d", i)
		}
		format := protocol.InsertTextFormatPlainText
		if cand.Snippet {
			format = protocol.InsertTextFormatSnippet
		}
		items = append(items, protocol.CompletionItem{
			Label:         cand.Label,
			Kind:          cand.Category.Kind(),
			Detail:        cand.Detail,
			Documentation: cand.Documentation,
			TextEdit: &protocol.TextEdit{
				Range: protocol.Range{
					Start: doc.PositionAt(cand.Replace.Start),
					End:   doc.PositionAt(cand.Replace.End),
				},
				NewText: cand.InsertText,
			},
			SortText:         sortText,
			FilterText:       cand.FilterText,
			InsertTextFormat: format,
		})
	}
	return items
}

// withTimeout derives the context for one live lookup.
func (r *request) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.c.opts.LookupTimeout)
}

func (r *request) tableRefs() []codeblock.TableRef {
	if r.refs == nil {
		r.refs = r.b.TableRefs()
		if r.refs == nil {
			r.refs = []codeblock.TableRef{}
		}
	}
	return r.refs
}

// last returns the n-th token before the word being typed. Punctuation and
// symbolic operators ending at the cursor count as already typed.
func (r *request) last(n int) *sqltoken.Token {
	if cur := r.b.CurrentToken; cur != nil && isPunct(cur) {
		if n == 0 {
			return cur
		}
		n--
	}
	return r.b.Last(n)
}

func isPunct(t *sqltoken.Token) bool {
	switch t.Type {
	case sqltoken.OpenParen, sqltoken.CloseParen, sqltoken.Delimiter:
		return true
	case sqltoken.Operator:
		c := t.Text[0]
		return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
	}
	return false
}

// firstIs reports whether the block's first token is word.
func (r *request) firstIs(word string) bool {
	if len(r.b.Tokens) == 0 {
		return false
	}
	return r.b.Tokens[0].Is(word)
}

// columnsOf returns the snapshot columns of a table reference.
func (r *request) columnsOf(ref codeblock.TableRef) []catalog.Object {
	return r.snap.Columns(ref.Schema, ref.Name)
}

// refByAlias finds the table reference an alias or name qualifies.
func (r *request) refByAlias(alias string) (codeblock.TableRef, bool) {
	for _, ref := range r.tableRefs() {
		if ref.Matches(alias) {
			return ref, true
		}
	}
	return codeblock.TableRef{}, false
}

// columnByName finds a column among the referenced relations. name may be
// qualified with an alias.
func (r *request) columnByName(name string) (catalog.Object, codeblock.TableRef, bool) {
	alias := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		alias, name = name[:i], name[i+1:]
	}
	name = strings.Trim(name, `"`)
	for _, ref := range r.tableRefs() {
		if alias != "" && !ref.Matches(alias) {
			continue
		}
		for _, col := range r.columnsOf(ref) {
			if strings.EqualFold(col.Name, name) {
				return col, ref, true
			}
		}
	}
	return catalog.Object{}, codeblock.TableRef{}, false
}

// columnCandidates lists the columns of every referenced relation. With more
// than one relation the column detail names its relation.
func (r *request) columnCandidates() []Candidate {
	refs := r.tableRefs()
	var out []Candidate
	for _, ref := range refs {
		for _, col := range r.columnsOf(ref) {
			c := objectCandidate(col)
			if len(refs) > 1 {
				qual := ref.Alias
				if qual == "" {
					qual = ref.Name
				}
				c.Detail = qual + " · " + col.DataType
			}
			out = append(out, c)
		}
	}
	return out
}

func (r *request) relationCandidates() []Candidate {
	rels := r.snap.Relations()
	// "schema." narrows to that schema and inserts bare names.
	if schema := r.qualifier(); schema != "" {
		var out []Candidate
		for _, o := range rels {
			if strings.EqualFold(o.Schema, schema) {
				c := objectCandidate(o)
				c.InsertText = o.Identifier()
				out = append(out, c)
			}
		}
		return out
	}
	return objectCandidates(rels)
}

// qualifier returns the "name." typed before the word under the cursor, or
// "" when the word is unqualified.
func (r *request) qualifier() string {
	cur := r.b.CurrentToken
	if cur == nil {
		return ""
	}
	if cur.Text == "." {
		if q := r.b.Last(0); isName(q) && q.End == cur.Offset {
			return strings.Trim(q.Text, `"`)
		}
		return ""
	}
	if cur.Type == sqltoken.Identifier {
		if i := strings.LastIndexByte(cur.Text, '.'); i > 0 {
			return strings.Trim(cur.Text[:i], `"`)
		}
	}
	return ""
}

// anchor returns the token before the word under the cursor, skipping a
// dangling "qualifier." prefix. It is nil at the start of the block.
func (r *request) anchor() *sqltoken.Token {
	if cur := r.b.CurrentToken; cur != nil && cur.Text == "." && r.qualifier() != "" {
		return r.b.Last(1)
	}
	return r.last(0)
}

func isName(t *sqltoken.Token) bool {
	return t != nil && (t.Type == sqltoken.Identifier || t.Type == sqltoken.QuotedIdentifier)
}

// enclosingCall returns the name token before the "(" that opens the
// cursor's group, when that group is an argument list.
func (r *request) enclosingCall() *sqltoken.Token {
	id := r.b.CurrentNestingID
	if id == "" {
		return nil
	}
	toks := r.b.Tokens
	for i, t := range toks {
		if t.Type != sqltoken.OpenParen || t.Group != id {
			continue
		}
		if i == 0 {
			return nil
		}
		name := toks[i-1]
		return &name
	}
	return nil
}

func (r *request) dataTypes() []catalog.Object {
	types := r.snap.ByKind(catalog.KindDataType)
	if len(types) == 0 {
		types = catalog.Builtin().ByKind(catalog.KindDataType)
	}
	return types
}

func (r *request) operators() []catalog.Object {
	ops := r.snap.ByKind(catalog.KindOperator)
	if len(ops) == 0 {
		ops = catalog.Builtin().ByKind(catalog.KindOperator)
	}
	return ops
}
