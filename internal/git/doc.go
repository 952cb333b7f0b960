// Package git reads the provenance of the book checkout: the HEAD commit and
// branch recorded in the build report, and the expected-branch check the
// build warns on.
package git
