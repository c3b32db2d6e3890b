// Package conversation defines the state the design assistant keeps per
// conversation and the schema that merges node updates into it.
//
// Every field has its own reducer:
//
//	messages   append, optionally replacing messages with a known ID
//	design     per-attribute patch, plus a whole-record reset
//	confirmed  last write wins
//	intent     last write wins
//	facts      replaced wholesale
package conversation
