package main

// appEvent is one item on the orchestration loop's fan-in channel.
// Pipeline relays, the silence monitor, the AI stream, and the keyboard
// reader all publish here; only the loop consumes.
type appEvent struct {
	kind appEventKind
	text string
	key  byte
}

type appEventKind int

const (
	evInterim appEventKind = iota
	evFinal
	evSilence
	evPipelineErr
	evTextChunk
	evResponseDone
	evStreamErr
	evNoSpeech
	evKey
	evStdinClosed
)

// eventBus implements pipeline.Events and provider.Events on top of a
// single buffered channel.
type eventBus struct {
	ch chan appEvent
}

func newEventBus() *eventBus {
	return &eventBus{ch: make(chan appEvent, 256)}
}

func (b *eventBus) push(ev appEvent) {
	// Drop rather than block: the publishers include the pipeline's
	// relay goroutines, which must never stall on a slow terminal.
	select {
	case b.ch <- ev:
	default:
	}
}

func (b *eventBus) InterimTranscript(text string) { b.push(appEvent{kind: evInterim, text: text}) }
func (b *eventBus) FinalTranscript(text string)   { b.push(appEvent{kind: evFinal, text: text}) }
func (b *eventBus) SilenceDetected(transcript string) {
	b.push(appEvent{kind: evSilence, text: transcript})
}
func (b *eventBus) PipelineError(msg string) { b.push(appEvent{kind: evPipelineErr, text: msg}) }

func (b *eventBus) TextChunk(text string)  { b.push(appEvent{kind: evTextChunk, text: text}) }
func (b *eventBus) ResponseComplete()      { b.push(appEvent{kind: evResponseDone}) }
func (b *eventBus) StreamError(msg string) { b.push(appEvent{kind: evStreamErr, text: msg}) }

func (b *eventBus) Key(k byte)   { b.push(appEvent{kind: evKey, key: k}) }
func (b *eventBus) StdinClosed() { b.push(appEvent{kind: evStdinClosed}) }
