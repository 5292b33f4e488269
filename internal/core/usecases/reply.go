package usecases

import (
	"context"
	"sync"

	"github.com/samirrijal/placesbridge/internal/core/ports"
)

// Result is the outcome delivered to a ResultSink.
type Result struct {
	OK      bool
	Payload string
	Message string
}

// Reply is a ResultSink that can be awaited.
type Reply struct {
	once sync.Once
	ch   chan Result
}

// NewReply creates an empty Reply.
func NewReply() *Reply {
	return &Reply{ch: make(chan Result, 1)}
}

func (r *Reply) Success(payload string) { r.deliver(Result{OK: true, Payload: payload}) }

func (r *Reply) Error(message string) { r.deliver(Result{Message: message}) }

func (r *Reply) deliver(res Result) {
	r.once.Do(func() { r.ch <- res })
}

// Wait blocks until the result arrives or ctx is done.
func (r *Reply) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-r.ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// SinkFuncs adapts a pair of callbacks to ports.ResultSink.
type SinkFuncs struct {
	OnSuccess func(payload string)
	OnError   func(message string)
}

func (s SinkFuncs) Success(payload string) {
	if s.OnSuccess != nil {
		s.OnSuccess(payload)
	}
}

func (s SinkFuncs) Error(message string) {
	if s.OnError != nil {
		s.OnError(message)
	}
}

// onceSink forwards only the first reply to the wrapped sink.
type onceSink struct {
	once sync.Once
	sink ports.ResultSink
}

func (s *onceSink) Success(payload string) {
	s.once.Do(func() { s.sink.Success(payload) })
}

func (s *onceSink) Error(message string) {
	s.once.Do(func() { s.sink.Error(message) })
}
