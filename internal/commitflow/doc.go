// Package commitflow sequences blob, tree, commit and reference operations
// into one atomic "add these files to this branch" workflow. The branch only
// moves once every object is in place; failures leave it at its prior tip.
package commitflow
