// Package asyncx runs task executions through asynq instead of in-process
// goroutines.
//
// A Client implements the orchestrator's dispatcher by enqueueing one
// task:execute message per task id. A Processor consumes those messages on
// any number of worker processes and hands each id to a Runner, normally the
// orchestrator's Execute. The task store stays the source of truth for
// status; asynq only carries the id.
//
// Quick start:
//  1. Create a Client with NewClient(redis, ClientOptions{...}) and pass it
//     to orchestrator.WithDispatcher.
//  2. Create a Processor with NewProcessor(redis, orch, ProcessorConfig{...}).
//  3. Start the processor; Shutdown drains in-flight executions.
package asyncx
