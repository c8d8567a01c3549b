// Package pullrequests merges bot-authored pull requests across a repository fleet.
package pullrequests
