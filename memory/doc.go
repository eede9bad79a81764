// Package memory contains MemoryStore implementations and the Memory type
// actors carry across tasks. The store interface and SearchResult type reside
// in the core package; select an implementation at wiring time.
//
// Every Memory attached to an actor is exposed to the model as a pair of
// tools (see Tools): store_memory_<key> and search_memory_<key>.
package memory
