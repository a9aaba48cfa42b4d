// Package runner drives catalog items through the provider state machine.
//
// Items are processed strictly in catalog order, one at a time: submit, poll
// until terminal or the wait budget elapses, fetch, write, then checkpoint.
// The checkpoint write happens immediately after each terminal outcome, which
// is what makes interruption safe at item granularity; an interrupt mid-item
// leaves that item unrecorded and it is retried from scratch next run.
//
// A failed item never stops the batch. Only checkpoint persistence failures
// and cancellation abort a run, because without a durable checkpoint no safe
// progress is possible.
package runner
