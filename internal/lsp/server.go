// Package lsp serves completion and code block requests to editors over the
// Language Server Protocol.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
	"go.uber.org/zap"

	// commonlog backend used by glsp.
	_ "github.com/tliron/commonlog/simple"

	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/completion"
	"github.com/woxQAQ/sqlcursor/internal/config"
	sqlproto "github.com/woxQAQ/sqlcursor/pkg/protocol"
)

const lsName = "sqlcursor"

// MethodCodeBlock returns the statement under a position, for "execute
// statement at cursor" commands.
const MethodCodeBlock = "sqlcursor/codeBlock"

type Server struct {
	cfg        *config.ServerConfig
	logger     *zap.Logger
	session    *Session
	classifier *completion.Classifier
	version    string

	handler protocol.Handler
	server  *server.Server
}

func NewServer(cfg *config.ServerConfig, session *Session, logger *zap.Logger, version string) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "lsp")),
		session:    session,
		classifier: completion.NewClassifier(logger, cfg.CompletionOptions()),
		version:    version,
	}

	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.textDocumentDidOpen,
		TextDocumentDidChange:  s.textDocumentDidChange,
		TextDocumentDidClose:   s.textDocumentDidClose,
		TextDocumentCompletion: s.textDocumentCompletion,
	}

	debug := cfg.LogLevel == "debug"
	verbosity := 0
	if debug {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	s.server = server.NewServer(s, lsName, debug)

	s.logger.Info("LSP server initialized",
		zap.Int("max_candidates", cfg.Completion.MaxCandidates),
		zap.Int("lookup_timeout_ms", cfg.Completion.LookupTimeoutMs),
	)

	return s
}

// Handle implements glsp.Handler: the custom code block request first, then
// the standard protocol methods.
func (s *Server) Handle(ctx *glsp.Context) (r any, validMethod bool, validParams bool, err error) {
	if ctx.Method != MethodCodeBlock {
		return s.handler.Handle(ctx)
	}
	var params sqlproto.CodeBlockParams
	if err := json.Unmarshal(ctx.Params, &params); err != nil {
		return nil, true, false, err
	}
	r, err = s.codeBlock(&params)
	return r, true, true, err
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serve(ctx, s.server.RunStdio)
}

func (s *Server) ServeTCP(ctx context.Context, port int) error {
	address := fmt.Sprintf("127.0.0.1:%d", port)
	s.logger.Info("Listening", zap.String("address", address))
	return s.serve(ctx, func() error { return s.server.RunTCP(address) })
}

// serve runs until the transport stops or ctx is cancelled.
func (s *Server) serve(ctx context.Context, run func() error) error {
	errc := make(chan error, 1)
	go func() { errc <- run() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down LSP server")
		return nil
	}
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()

	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", " ", "(", ":", "\\"},
	}

	client := ""
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	s.logger.Info("Client connected", zap.String("client", client))

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(*glsp.Context, *protocol.InitializedParams) error {
	snap, lookup := s.session.Catalog()
	s.logger.Debug("Client initialized",
		zap.Int("catalog_objects", snap.Len()),
		zap.Bool("live_lookup", lookup != nil),
	)
	return nil
}

func (s *Server) shutdown(*glsp.Context) error {
	s.logger.Info("Client requested shutdown")
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.session.Open(string(params.TextDocument.URI), params.TextDocument.Version, params.TextDocument.Text)
	return nil
}

func (s *Server) textDocumentDidChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	if !s.session.Change(uri, params.TextDocument.Version, params.ContentChanges) {
		s.logger.Warn("Change for a document that is not open", zap.String("uri", uri))
	}
	return nil
}

func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.session.Close(string(params.TextDocument.URI))
	return nil
}

// glsp dispatches requests without a context; live lookups are bounded by
// their own timeout.
func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	return s.complete(context.Background(), string(params.TextDocument.URI), params.Position)
}

func (s *Server) complete(ctx context.Context, uri string, pos protocol.Position) (*protocol.CompletionList, error) {
	doc, version, ok := s.session.Document(uri)
	if !ok {
		return nil, nil
	}

	block := codeblock.Resolve(doc, doc.OffsetAt(fromClient(doc, pos)), s.cfg.ResolverOptions())
	snap, lookup := s.session.Catalog()
	cands := s.classifier.Classify(ctx, block, snap, lookup)

	if !s.session.Current(uri, version) {
		s.logger.Debug("Discarding stale completion",
			zap.String("uri", uri),
			zap.Int32("version", int32(version)),
		)
		return &protocol.CompletionList{IsIncomplete: true, Items: []protocol.CompletionItem{}}, nil
	}

	items := s.classifier.Items(block, cands)
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, item := range items {
		out = append(out, toClientItem(doc, item))
	}
	return &protocol.CompletionList{Items: out}, nil
}

func (s *Server) codeBlock(params *sqlproto.CodeBlockParams) (*sqlproto.CodeBlock, error) {
	uri := params.TextDocument.URI
	doc, _, ok := s.session.Document(uri)
	if !ok {
		return nil, fmt.Errorf("document '%s' is not open", uri)
	}

	opts := s.cfg.ResolverOptions()
	opts.SmallestBlock = opts.SmallestBlock || params.SmallestBlock

	// Position arrives in UTF-16 units like every other request.
	pos := fromClient(doc, protocol.Position{
		Line:      protocol.UInteger(params.Position.Line),
		Character: protocol.UInteger(params.Position.Character),
	})
	block := codeblock.Resolve(doc, doc.OffsetAt(pos), opts)

	start, end := doc.PositionAt(block.StartOffset), doc.PositionAt(block.EndOffset)
	r := toClientRange(doc, sqlproto.Range{Start: start, End: end})
	return &sqlproto.CodeBlock{
		Range: sqlproto.Range{
			Start: sqlproto.Position{Line: int(r.Start.Line), Character: int(r.Start.Character)},
			End:   sqlproto.Position{Line: int(r.End.Line), Character: int(r.End.Character)},
		},
		Text:      block.Text,
		StartLine: block.StartLine,
		EndLine:   block.EndLine,
	}, nil
}

func toClientItem(doc *codeblock.Document, item sqlproto.CompletionItem) protocol.CompletionItem {
	kind := clientKind(item.Kind)
	format := protocol.InsertTextFormat(item.InsertTextFormat)
	out := protocol.CompletionItem{
		Label:            item.Label,
		Kind:             &kind,
		InsertTextFormat: &format,
	}
	if item.Detail != "" {
		out.Detail = &item.Detail
	}
	if item.Documentation != "" {
		out.Documentation = item.Documentation
	}
	if item.SortText != "" {
		out.SortText = &item.SortText
	}
	if item.FilterText != "" {
		out.FilterText = &item.FilterText
	}
	if item.TextEdit != nil {
		out.TextEdit = protocol.TextEdit{
			Range:   toClientRange(doc, item.TextEdit.Range),
			NewText: item.TextEdit.NewText,
		}
	}
	return out
}

func clientKind(k sqlproto.CompletionItemKind) protocol.CompletionItemKind {
	switch k {
	case sqlproto.CompletionItemKindKeyword:
		return protocol.CompletionItemKindKeyword
	case sqlproto.CompletionItemKindFunction:
		return protocol.CompletionItemKindFunction
	case sqlproto.CompletionItemKindTable, sqlproto.CompletionItemKindView:
		return protocol.CompletionItemKindClass
	case sqlproto.CompletionItemKindColumn:
		return protocol.CompletionItemKindField
	case sqlproto.CompletionItemKindSchema, sqlproto.CompletionItemKindNamespace, sqlproto.CompletionItemKindModule:
		return protocol.CompletionItemKindModule
	case sqlproto.CompletionItemKindType, sqlproto.CompletionItemKindStruct:
		return protocol.CompletionItemKindStruct
	case sqlproto.CompletionItemKindEnum:
		return protocol.CompletionItemKindEnum
	case sqlproto.CompletionItemKindOperator:
		return protocol.CompletionItemKindOperator
	case sqlproto.CompletionItemKindSnippet:
		return protocol.CompletionItemKindSnippet
	case sqlproto.CompletionItemKindValue:
		return protocol.CompletionItemKindValue
	case sqlproto.CompletionItemKindSetting, sqlproto.CompletionItemKindParameter:
		return protocol.CompletionItemKindProperty
	case sqlproto.CompletionItemKindReference, sqlproto.CompletionItemKindRole:
		return protocol.CompletionItemKindReference
	case sqlproto.CompletionItemKindFile:
		return protocol.CompletionItemKindFile
	case sqlproto.CompletionItemKindFolder:
		return protocol.CompletionItemKindFolder
	}
	return protocol.CompletionItemKindText
}
