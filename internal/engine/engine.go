// Package engine keeps the source and byte buffers consistent.
//
// Whichever buffer the user edited last is authoritative. Each edit bumps a
// global generation; the transformation of the authoritative buffer into the
// other one runs elsewhere (see Execute) and its result is applied only if no
// edit or reconfiguration happened since the request was taken. A failed
// transformation leaves both buffers alone and only changes the state.
//
// Engine is not safe for concurrent use. Execute is the exception: it reads
// only its Request and may run on any goroutine.
package engine

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/elfx"
	"shellsync/internal/pipeline"
)

// Origin names the buffer a transformation starts from.
type Origin int

const (
	FromSource Origin = iota
	FromBytes
)

func (o Origin) String() string {
	if o == FromBytes {
		return "bytes"
	}
	return "source"
}

type Status int

const (
	Synced Status = iota
	SourceAuthoritative
	BytesAuthoritative
	Failed
)

func (s Status) String() string {
	switch s {
	case SourceAuthoritative:
		return "source-authoritative"
	case BytesAuthoritative:
		return "bytes-authoritative"
	case Failed:
		return "failed"
	}
	return "synced"
}

func pendingStatus(o Origin) Status {
	if o == FromBytes {
		return BytesAuthoritative
	}
	return SourceAuthoritative
}

// State is the provenance of the displayed pair. Origin is meaningful unless
// Status is Synced; Message and Severity only when Status is Failed.
type State struct {
	Status   Status
	Origin   Origin
	Message  string
	Severity pipeline.Severity
}

// Request is a transformation of one buffer's content, taken at Generation.
type Request struct {
	Origin     Origin
	Source     string
	Bytes      []byte
	Generation uint64
	Session    config.Session
}

// Result is what a worker hands back for a Request.
type Result struct {
	Request Request
	Text    string
	Bytes   []byte
	Labels  []elfx.Label
	Err     error
}

// Transcoder is the pair of transformations. *pipeline.Pipelines
// implements it.
type Transcoder interface {
	Assemble(ctx context.Context, text string, s config.Session) (*elfx.Code, error)
	Disassemble(ctx context.Context, raw []byte, s config.Session) (string, error)
}

type Engine struct {
	source  *buffer.Source
	bytes   *buffer.Bytes
	state   State
	session config.Session
	labels  []elfx.Label

	generation uint64
	dispatched uint64 // last generation handed out as a Request

	tc     Transcoder
	logger *log.Logger
}

// New returns an engine with both buffers empty and the state Synced.
func New(tc Transcoder, s config.Session, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		source:  buffer.NewSource(""),
		bytes:   buffer.NewBytes(nil),
		session: s,
		tc:      tc,
		logger:  logger,
	}
}

func (e *Engine) State() State            { return e.state }
func (e *Engine) Session() config.Session { return e.session }

// Pending reports whether a transformation of the authoritative buffer is
// outstanding.
func (e *Engine) Pending() bool {
	return e.state.Status == SourceAuthoritative || e.state.Status == BytesAuthoritative
}

func (e *Engine) authoritative(o Origin) bool {
	return e.state.Status == pendingStatus(o)
}

// EditSource runs op on the source buffer. If op reports a change, the
// source becomes authoritative and the generation advances.
func (e *Engine) EditSource(op func(*buffer.Source) bool) bool {
	if !op(e.source) {
		return false
	}
	e.touch(FromSource)
	return true
}

// EditBytes is EditSource for the byte buffer.
func (e *Engine) EditBytes(op func(*buffer.Bytes) bool) bool {
	if !op(e.bytes) {
		return false
	}
	e.touch(FromBytes)
	return true
}

func (e *Engine) touch(o Origin) {
	e.generation++
	e.state = State{Status: pendingStatus(o), Origin: o}
	e.logger.Debug("edit", "origin", o, "generation", e.generation)
}

// MoveSource runs a cursor movement on the source buffer.
func (e *Engine) MoveSource(op func(*buffer.Source)) { op(e.source) }

// MoveBytes runs a cursor movement on the byte buffer.
func (e *Engine) MoveBytes(op func(*buffer.Bytes)) { op(e.bytes) }

// Settle returns the request for origin once its edits have settled. It
// reports false when origin is no longer authoritative or the current
// generation was already dispatched.
func (e *Engine) Settle(o Origin) (Request, bool) {
	if !e.authoritative(o) || e.dispatched == e.generation {
		return Request{}, false
	}
	return e.request(o), true
}

func (e *Engine) request(o Origin) Request {
	e.dispatched = e.generation
	req := Request{Origin: o, Generation: e.generation, Session: e.session}
	if o == FromSource {
		req.Source = e.source.Text()
	} else {
		req.Bytes = e.bytes.Bytes()
	}
	e.logger.Debug("dispatch", "origin", o, "generation", req.Generation, "session", req.Session)
	return req
}

// Reconfigure switches the session and returns the request that re-derives
// the other buffer from the authoritative one, to be run without debounce.
// When Synced the source is taken as authoritative; when Failed the origin
// of the failure is.
func (e *Engine) Reconfigure(s config.Session) Request {
	e.session = s
	o := e.state.Origin
	if e.state.Status == Synced {
		o = FromSource
	}
	e.generation++
	e.state = State{Status: pendingStatus(o), Origin: o}
	e.logger.Debug("reconfigure", "session", s, "origin", o, "generation", e.generation)
	return e.request(o)
}

// Execute runs the transformation for req. It does not touch the engine's
// mutable state.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	res := Result{Request: req}
	switch req.Origin {
	case FromSource:
		code, err := e.tc.Assemble(ctx, req.Source, req.Session)
		if err != nil {
			res.Err = err
			return res
		}
		res.Bytes = code.Bytes
		res.Labels = code.Labels
	case FromBytes:
		text, err := e.tc.Disassemble(ctx, req.Bytes, req.Session)
		if err != nil {
			res.Err = err
			return res
		}
		res.Text = strings.TrimSuffix(text, "\n")
	}
	return res
}

// Apply folds a result into the buffers. Results from an older generation
// are dropped and Apply reports false.
func (e *Engine) Apply(res Result) bool {
	req := res.Request
	if req.Generation != e.generation {
		e.logger.Debug("stale result", "origin", req.Origin, "generation", req.Generation, "current", e.generation)
		return false
	}

	if res.Err != nil {
		e.state = State{
			Status:   Failed,
			Origin:   req.Origin,
			Message:  pipeline.Diagnostic(res.Err),
			Severity: pipeline.SeverityOf(res.Err),
		}
		e.logger.Debug("transform failed", "origin", req.Origin, "generation", req.Generation, "error", res.Err)
		return true
	}

	switch req.Origin {
	case FromSource:
		e.bytes.SetBytes(res.Bytes)
		e.labels = res.Labels
	case FromBytes:
		e.source.SetText(res.Text)
		e.labels = nil
	}
	e.state = State{Status: Synced, Origin: req.Origin}
	e.logger.Debug("synced", "origin", req.Origin, "generation", req.Generation)
	return true
}

// Snapshot is a read-only copy of everything the view draws.
type Snapshot struct {
	Source       []string
	SourceRow    int
	SourceCol    int
	Bytes        []byte
	ByteCursor   int
	Nibble       rune
	NibbleSet    bool
	State        State
	Session      config.Session
	Generation   uint64
	Labels       []elfx.Label
	Transforming bool
}

func (e *Engine) Snapshot() Snapshot {
	row, col := e.source.Cursor()
	nib, ok := e.bytes.Pending()
	return Snapshot{
		Source:       e.source.Lines(),
		SourceRow:    row,
		SourceCol:    col,
		Bytes:        e.bytes.Bytes(),
		ByteCursor:   e.bytes.Cursor(),
		Nibble:       nib,
		NibbleSet:    ok,
		State:        e.state,
		Session:      e.session,
		Generation:   e.generation,
		Labels:       append([]elfx.Label(nil), e.labels...),
		Transforming: e.Pending(),
	}
}

// Load replaces the source with text, as if typed, and returns the request
// to derive the bytes immediately.
func (e *Engine) Load(text string) Request {
	e.source.SetText(text)
	e.touch(FromSource)
	return e.request(FromSource)
}
