package gitdata

// PendingFileSet accumulates staged blobs for a single commit. It belongs to
// one workflow instance and is not safe for concurrent use.
type PendingFileSet struct {
	entries []TreeEntry
}

// NewPendingFileSet constructs an empty PendingFileSet.
func NewPendingFileSet() *PendingFileSet {
	return &PendingFileSet{}
}

// Stage records a blob for path with the default file mode.
func (set *PendingFileSet) Stage(path string, blob Hash) {
	set.StageEntry(TreeEntry{Path: path, Hash: blob})
}

// StageEntry records an entry exactly as provided; later entries for the same
// path take precedence when the tree is composed.
func (set *PendingFileSet) StageEntry(entry TreeEntry) {
	set.entries = append(set.entries, entry)
}

// Entries returns the staged entries in staging order, duplicates included.
func (set *PendingFileSet) Entries() []TreeEntry {
	return append([]TreeEntry{}, set.entries...)
}

// Len reports the number of staged entries.
func (set *PendingFileSet) Len() int {
	return len(set.entries)
}

// Clear discards every staged entry.
func (set *PendingFileSet) Clear() {
	set.entries = nil
}
