// Package catalog defines the static agent catalog: the seven pipeline
// phases, the AgentMapping record, and the fixed table of work agents and
// forensic reviewers that the dependency graph and scheduler are built from.
package catalog
