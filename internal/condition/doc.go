// Package condition implements the transition condition DSL.
//
// A Script is an ordered list of rules joined by a combinator (AND by
// default). Rules are a closed set of variants: priority, role, scope and
// time elapsed in the current stage. A rule whose type is not recognised
// parses into UnknownRule and always passes, so scripts written for newer
// rule types keep working on older engines. Evaluation is pure.
package condition
