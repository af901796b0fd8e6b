// Package audit delivers token lifecycle events to pluggable sinks.
//
// [Dispatcher] decouples the engine from sink latency: events are queued on a
// bounded channel and drained by one goroutine. With DropIfFull set, a full
// queue drops the event and bumps [Dispatcher.Dropped] instead of blocking the
// caller. Close drains what is queued before returning.
package audit
