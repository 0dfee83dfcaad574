// Package langpipe runs conversation "pipes" against multiple LLM vendors
// through one canonical request shape.
//
// A pipe is an immutable conversation policy: a model identifier
// ("vendor:model"), sampling parameters, registered tools, and named memory
// references. The [Runner] is the entry point: it composes the system
// prompt (optionally augmented with retrieved memory), resolves the vendor
// through a [Registry], and drives the bounded tool-calling loop — buffered
// or streaming — until the model produces a final answer.
//
//	pipe, _ := langpipe.LoadPipe("support.toml")
//	runner := langpipe.NewRunner(pipe, registry.Default(),
//		langpipe.WithTools(tools),
//		langpipe.WithRetrieval(engine),
//	)
//	result, err := runner.Run(ctx, langpipe.RunOptions{
//		Messages: []langpipe.Message{langpipe.UserMessage("hello")},
//		APIKey:   key,
//	})
//
// Streaming runs return a [ChunkReader] of canonical chunks. When tools are
// registered, each response stream is teed: one copy is scanned for
// tool-call deltas while the caller's copy stays fully replayable, so tool
// detection never steals tokens from the consumer.
//
// Vendor wire formats live under provider/ (openaicompat, anthropic,
// google); embedding backends under embed/; chunk stores under store/; the
// document ingestion pipeline under ingest/; the HTTP boundary under
// server/.
package langpipe
