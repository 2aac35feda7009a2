package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/pipeline"
	"shellsync/internal/toolchain"
	"shellsync/internal/toolchain/toolchaintest"
)

func newEngine(t *testing.T) (*Engine, *toolchaintest.Fake) {
	t.Helper()
	fake := toolchaintest.New()
	iv := toolchain.NewInvoker(fake, nil)
	iv.TempDir = t.TempDir()
	p := &pipeline.Pipelines{Invoker: iv, Extract: toolchaintest.RawExtract}
	return New(p, config.DefaultSession(), nil), fake
}

func typeSource(e *Engine, text string) {
	for _, r := range text {
		e.EditSource(func(s *buffer.Source) bool { return s.InsertRune(r) })
	}
}

func typeHex(e *Engine, digits string) {
	for _, r := range digits {
		e.EditBytes(func(b *buffer.Bytes) bool { return b.InputNibble(r) })
	}
}

func clearSource(e *Engine) {
	e.MoveSource(func(s *buffer.Source) {
		for range 100 {
			s.Down()
		}
		s.End()
	})
	for e.EditSource((*buffer.Source).Backspace) {
	}
}

// settle runs the settled request for o to completion, as the controller
// does after the debounce interval.
func settle(t *testing.T, e *Engine, o Origin) {
	t.Helper()
	req, ok := e.Settle(o)
	if !ok {
		t.Fatalf("Settle(%v) returned no request in state %v", o, e.State().Status)
	}
	e.Apply(e.Execute(context.Background(), req))
}

func TestInitialState(t *testing.T) {
	e, _ := newEngine(t)
	if e.State().Status != Synced {
		t.Errorf("Status = %v, want synced", e.State().Status)
	}
	if e.source.Text() != "" || len(e.bytes.Bytes()) != 0 {
		t.Error("buffers should start empty")
	}
	if _, ok := e.Settle(FromSource); ok {
		t.Error("nothing to settle before the first edit")
	}
}

func TestAssembleScenario(t *testing.T) {
	e, _ := newEngine(t)

	typeSource(e, "mov eax, 1")
	if e.State().Status != SourceAuthoritative {
		t.Fatalf("Status = %v, want source-authoritative", e.State().Status)
	}
	if e.generation != uint64(len("mov eax, 1")) {
		t.Errorf("Generation = %d, want one per keystroke", e.generation)
	}

	settle(t, e, FromSource)

	if e.State().Status != Synced {
		t.Fatalf("Status = %v (%s), want synced", e.State().Status, e.State().Message)
	}
	if got := e.bytes.Bytes(); !bytes.Equal(got, []byte{0xb8, 0x01, 0x00, 0x00, 0x00}) {
		t.Errorf("bytes = % x", got)
	}
	if e.source.Text() != "mov eax, 1" {
		t.Errorf("authoritative source was touched: %q", e.source.Text())
	}
}

func TestDisassembleScenario(t *testing.T) {
	e, _ := newEngine(t)

	typeHex(e, "9")
	if e.State().Status != Synced || e.generation != 0 {
		t.Fatal("a single nibble must not count as an edit")
	}
	typeHex(e, "0")
	if e.State().Status != BytesAuthoritative {
		t.Fatalf("Status = %v, want bytes-authoritative", e.State().Status)
	}

	settle(t, e, FromBytes)

	if e.State().Status != Synced {
		t.Fatalf("Status = %v (%s), want synced", e.State().Status, e.State().Message)
	}
	if e.source.Text() != "nop" {
		t.Errorf("source = %q, want nop", e.source.Text())
	}
}

func TestErrorIsolation(t *testing.T) {
	e, _ := newEngine(t)
	typeSource(e, "nop")
	settle(t, e, FromSource)

	clearSource(e)
	typeSource(e, "bogus_instr")
	settle(t, e, FromSource)

	st := e.State()
	if st.Status != Failed || st.Origin != FromSource {
		t.Fatalf("State = %+v, want failed from source", st)
	}
	if !strings.Contains(st.Message, "bogus_instr") {
		t.Errorf("Message = %q, want the assembler diagnostic", st.Message)
	}
	if st.Severity != pipeline.UserError {
		t.Errorf("Severity = %v, want input", st.Severity)
	}
	if got := e.bytes.Bytes(); !bytes.Equal(got, []byte{0x90}) {
		t.Errorf("bytes = % x, want last good value 90", got)
	}
	if e.source.Text() != "bogus_instr" {
		t.Errorf("source = %q, user text lost", e.source.Text())
	}

	// still responsive
	clearSource(e)
	typeSource(e, "ret")
	settle(t, e, FromSource)
	if e.State().Status != Synced || !bytes.Equal(e.bytes.Bytes(), []byte{0xc3}) {
		t.Errorf("after fix: %v % x", e.State().Status, e.bytes.Bytes())
	}
}

func TestEmptySourceFastPath(t *testing.T) {
	e, fake := newEngine(t)
	typeSource(e, "nop")
	settle(t, e, FromSource)
	before := fake.Calls()

	clearSource(e)
	settle(t, e, FromSource)

	if e.State().Status != Synced {
		t.Fatalf("Status = %v", e.State().Status)
	}
	if len(e.bytes.Bytes()) != 0 {
		t.Errorf("bytes = % x, want empty", e.bytes.Bytes())
	}
	if fake.Calls() != before {
		t.Errorf("empty source spawned %d toolchain calls", fake.Calls()-before)
	}
}

func TestStaleResultSuppressed(t *testing.T) {
	e, _ := newEngine(t)

	typeSource(e, "nop")
	older, _ := e.Settle(FromSource)

	clearSource(e)
	typeSource(e, "ret")
	newer, ok := e.Settle(FromSource)
	if !ok || newer.Generation <= older.Generation {
		t.Fatalf("newer request %+v does not supersede %+v", newer, older)
	}

	newRes := e.Execute(context.Background(), newer)
	oldRes := e.Execute(context.Background(), older)

	if e.Apply(oldRes) {
		t.Error("stale result applied")
	}
	if e.State().Status != SourceAuthoritative || len(e.bytes.Bytes()) != 0 {
		t.Errorf("stale result changed state: %v % x", e.State().Status, e.bytes.Bytes())
	}

	if !e.Apply(newRes) {
		t.Fatal("current result dropped")
	}
	// late arrival after the newer one: still ignored
	e.Apply(oldRes)
	if !bytes.Equal(e.bytes.Bytes(), []byte{0xc3}) {
		t.Errorf("bytes = % x, want c3 from the newest generation", e.bytes.Bytes())
	}
}

func TestStaleFromOtherOrigin(t *testing.T) {
	e, _ := newEngine(t)

	typeSource(e, "nop")
	req, _ := e.Settle(FromSource)
	res := e.Execute(context.Background(), req)

	// user moves to the byte panel and edits before the assemble finishes
	typeHex(e, "c3")

	if e.Apply(res) {
		t.Fatal("result for a no longer authoritative origin applied")
	}
	if got := e.bytes.Bytes(); !bytes.Equal(got, []byte{0xc3}) {
		t.Errorf("user bytes clobbered: % x", got)
	}
	if _, ok := e.Settle(FromSource); ok {
		t.Error("source should not settle while bytes are authoritative")
	}
}

func TestSettleOncePerGeneration(t *testing.T) {
	e, _ := newEngine(t)
	typeSource(e, "nop")
	if _, ok := e.Settle(FromSource); !ok {
		t.Fatal("first settle returned nothing")
	}
	if _, ok := e.Settle(FromSource); ok {
		t.Error("the same generation was dispatched twice")
	}
}

func TestReconfigure(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(t *testing.T, e *Engine)
		wantOrigin Origin
	}{
		{"synced uses source", func(t *testing.T, e *Engine) {
			typeHex(e, "90")
			settle(t, e, FromBytes)
		}, FromSource},
		{"source authoritative", func(t *testing.T, e *Engine) {
			typeSource(e, "nop")
		}, FromSource},
		{"bytes authoritative", func(t *testing.T, e *Engine) {
			typeHex(e, "90")
		}, FromBytes},
		{"failed bytes", func(t *testing.T, e *Engine) {
			typeHex(e, "dead")
			settle(t, e, FromBytes)
		}, FromBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			tt.prepare(t, e)
			gen := e.generation

			req := e.Reconfigure(e.Session().ToggleBitness())

			if req.Origin != tt.wantOrigin {
				t.Errorf("Origin = %v, want %v", req.Origin, tt.wantOrigin)
			}
			if req.Generation != gen+1 || e.generation != gen+1 {
				t.Errorf("Generation = %d, want %d", req.Generation, gen+1)
			}
			if req.Session.Bitness != config.Bits32 || e.Session().Bitness != config.Bits32 {
				t.Errorf("Session = %v", req.Session)
			}
			if _, ok := e.Settle(tt.wantOrigin); ok {
				t.Error("pending debounce would dispatch the reconfigured generation again")
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e, _ := newEngine(t)
	typeHex(e, "90")
	snap := e.Snapshot()
	snap.Bytes[0] = 0xcc
	snap.Source[0] = "changed"
	if e.bytes.Bytes()[0] != 0x90 || e.source.Text() != "" {
		t.Error("snapshot aliases engine buffers")
	}
	if !snap.Transforming || snap.State.Status != BytesAuthoritative {
		t.Errorf("snapshot state = %+v", snap.State)
	}
}

func TestLoad(t *testing.T) {
	e, _ := newEngine(t)
	req := e.Load("nop\nret")
	e.Apply(e.Execute(context.Background(), req))
	if !bytes.Equal(e.bytes.Bytes(), []byte{0x90, 0xc3}) {
		t.Errorf("bytes = % x", e.bytes.Bytes())
	}
}

func TestResultKeepsHalfTypedByte(t *testing.T) {
	e, _ := newEngine(t)

	typeSource(e, "mov eax, 1")
	req, ok := e.Settle(FromSource)
	if !ok {
		t.Fatal("no request")
	}
	res := e.Execute(context.Background(), req)

	// first digit typed into the byte panel while the assemble is in flight
	typeHex(e, "9")
	if !e.Apply(res) {
		t.Fatal("result dropped")
	}

	snap := e.Snapshot()
	if !snap.NibbleSet || snap.Nibble != '9' {
		t.Fatalf("pending nibble = %q set=%v, want 9 held", snap.Nibble, snap.NibbleSet)
	}
	if snap.State.Status != Synced {
		t.Errorf("Status = %v, want synced", snap.State.Status)
	}

	typeHex(e, "0")
	want := []byte{0x90, 0xb8, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(e.Snapshot().Bytes, want) {
		t.Errorf("bytes = % x, want % x", e.Snapshot().Bytes, want)
	}
	if e.State().Status != BytesAuthoritative {
		t.Errorf("Status = %v, want bytes authoritative", e.State().Status)
	}
}
