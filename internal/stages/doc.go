// Package stages contains the language-model steps of the answer pipeline.
//
// Planner and Ranker never fail: when the model output cannot be used they
// return a result flagged as a fallback and the pipeline continues with the
// documented default. Synthesizer and Reviewer return errors, since there is
// no local substitute for generated text.
package stages
