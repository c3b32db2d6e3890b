// Package faq answers frequently asked questions by semantic search.
//
// Entries are question/answer pairs. The question is embedded with an
// llm.Embedder and stored next to the answer; Retrieve embeds the user's
// message and returns the closest questions as capability.Documents whose
// "answer" metadata holds the answer.
//
// Store keeps entries in PostgreSQL with pgvector. MemoryStore keeps them
// in process and is used by tests and the evaluation runner.
package faq
