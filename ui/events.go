package ui

import (
	"sync"

	"node.town/mindy/pipeline"
)

type stateMsg pipeline.State

type resultMsg pipeline.Result

type noticeMsg string

// Events forwards pipeline and speech notifications to the TUI. It
// implements pipeline.Observer.
type Events struct {
	ch   chan any
	done chan struct{}
	once sync.Once
}

func NewEvents() *Events {
	return &Events{
		ch:   make(chan any, 256),
		done: make(chan struct{}),
	}
}

func (e *Events) StateChanged(s pipeline.State) { e.send(stateMsg(s)) }
func (e *Events) Published(r pipeline.Result)  { e.send(resultMsg(r)) }
func (e *Events) Notice(msg string)            { e.send(noticeMsg(msg)) }

// Close stops delivery. Senders never block after Close.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) send(msg any) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}
