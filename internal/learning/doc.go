// Package learning converts forensic verdicts into scalar quality signals
// and feeds them to a weighted pattern/trajectory learner.
//
// The bridge never blocks or fails the pipeline: submissions run on a tracked
// goroutine and every failure is logged and swallowed. Only INNOCENT verdicts
// are promoted to the long-term pattern store; GUILTY verdicts adjust weights
// locally but are never recorded as reusable "good" patterns.
package learning
