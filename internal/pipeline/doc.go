// Package pipeline drives a single video through transcript fetch, streamed
// summarization and persistence.
//
// A Processor is a small state machine:
//
//	idle -> gathering -> summarizing -> complete
//	            |             |
//	            +--> error <--+
//
// complete and error return to idle through Reset. The phase that failed
// (transcript, summary or save) is recorded on the error state. Summaries
// arrive as a Stream of Chunks; over HTTP they travel as newline-delimited
// JSON (see NewNDJSONStream and Encoder).
package pipeline
