// Package pipeline coordinates the answer flow over the shared catalog and
// vector index.
//
// The Coordinator owns one State (catalog plus index) for the whole process.
// State is created on first use through a single-flight initializer: however
// many requests arrive before it exists, exactly one load-or-build runs and
// every caller receives its result. A failed initialization is not cached.
// Administrative rebuilds run one at a time and swap the new State in
// atomically; requests already running keep the State they started with.
//
// Answer runs planner, capability resolution, ranker, synthesizer and
// reviewer strictly in sequence. The first three degrade locally; synthesizer
// and reviewer failures fail the request.
package pipeline
