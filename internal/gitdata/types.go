package gitdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

const (
	repositoryIdentifierTemplateConstant   = "%s/%s"
	repositoryIdentifierSeparatorConstant  = "/"
	branchReferencePrefixConstant          = "refs/heads/"
	referencesPrefixConstant               = "refs/"
	treeEntryModeTemplateConstant          = "%06o"
	ownerFieldNameConstant                 = "owner"
	repositoryNameFieldNameConstant        = "repository"
	repositoryIdentifierFieldNameConstant  = "repository_identifier"
	requiredValueMessageConstant           = "value required"
	repositoryIdentifierFormatMessage      = "expected owner/name"
	unsupportedEncodingMessageTemplate     = "unsupported encoding %q"
	unsupportedModeMessageTemplate         = "unsupported mode %q"
	unsupportedObjectTypeMessageTemplate   = "unsupported object type %q"
	mismatchedObjectTypeMessageTemplate    = "object type %q does not match mode %s"
	invalidHashMessageTemplate             = "invalid object hash %q"
	encodingFieldNameConstant              = "encoding"
	modeFieldNameConstant                  = "mode"
	typeFieldNameConstant                  = "type"
	hashFieldNameConstant                  = "hash"
	blobEncodingUTF8StringConstant         = "utf-8"
	blobEncodingBase64StringConstant       = "base64"
	objectTypeBlobStringConstant           = "blob"
	objectTypeTreeStringConstant           = "tree"
	objectTypeCommitStringConstant         = "commit"
	branchCreationCreatedStringConstant    = "created"
	branchCreationExistedStringConstant    = "already_existed"
	branchNameFieldNameConstant            = "branch"
	branchNameReferencePrefixMessage       = "expected a short branch name without refs/ prefix"
	branchNameWhitespaceMessageConstant    = "branch names cannot contain whitespace"
	pathFieldNameConstant                  = "path"
	pathAbsoluteMessageConstant            = "path must be relative to the repository root"
	pathTrailingSeparatorMessageConstant   = "path must name a file, not a directory"
	pathRelativeSegmentMessageTemplate     = "path segment %q is not allowed"
	pathSeparatorConstant                  = "/"
	pathCurrentDirectorySegmentConstant    = "."
	pathParentDirectorySegmentConstant     = ".."
	repositoryIdentifierExpectedPartsCount = 2
)

// Hash identifies an immutable object assigned by the remote service.
type Hash string

// String returns the textual hash.
func (hash Hash) String() string {
	return string(hash)
}

// IsZero reports whether the hash is unset.
func (hash Hash) IsZero() bool {
	return len(strings.TrimSpace(string(hash))) == 0
}

// Validate ensures the hash is a well-formed hexadecimal object name.
func (hash Hash) Validate(fieldName string) error {
	if hash.IsZero() {
		return InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	if !plumbing.IsHash(string(hash)) {
		return InvalidInputError{FieldName: fieldName, Message: fmt.Sprintf(invalidHashMessageTemplate, string(hash))}
	}
	return nil
}

// RepositoryIdentifier names a repository on the hosting service.
type RepositoryIdentifier struct {
	Owner string
	Name  string
}

// ParseRepositoryIdentifier interprets owner/name notation.
func ParseRepositoryIdentifier(value string) (RepositoryIdentifier, error) {
	components := strings.Split(strings.TrimSpace(value), repositoryIdentifierSeparatorConstant)
	if len(components) != repositoryIdentifierExpectedPartsCount {
		return RepositoryIdentifier{}, InvalidInputError{FieldName: repositoryIdentifierFieldNameConstant, Message: repositoryIdentifierFormatMessage}
	}
	identifier := RepositoryIdentifier{Owner: strings.TrimSpace(components[0]), Name: strings.TrimSpace(components[1])}
	if validationError := identifier.Validate(); validationError != nil {
		return RepositoryIdentifier{}, validationError
	}
	return identifier, nil
}

// String renders the identifier in owner/name notation.
func (identifier RepositoryIdentifier) String() string {
	return fmt.Sprintf(repositoryIdentifierTemplateConstant, identifier.Owner, identifier.Name)
}

// Validate ensures both the owner and the repository name are present.
func (identifier RepositoryIdentifier) Validate() error {
	if len(strings.TrimSpace(identifier.Owner)) == 0 {
		return InvalidInputError{FieldName: ownerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(identifier.Name)) == 0 {
		return InvalidInputError{FieldName: repositoryNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return nil
}

// BlobEncoding selects how the service interprets blob content.
type BlobEncoding string

// Supported blob encodings.
const (
	BlobEncodingUTF8   BlobEncoding = BlobEncoding(blobEncodingUTF8StringConstant)
	BlobEncodingBase64 BlobEncoding = BlobEncoding(blobEncodingBase64StringConstant)
)

// normalize applies the utf-8 default and rejects unknown encodings.
func (encoding BlobEncoding) normalize() (BlobEncoding, error) {
	switch BlobEncoding(strings.ToLower(strings.TrimSpace(string(encoding)))) {
	case "", BlobEncodingUTF8:
		return BlobEncodingUTF8, nil
	case BlobEncodingBase64:
		return BlobEncodingBase64, nil
	default:
		return "", InvalidInputError{FieldName: encodingFieldNameConstant, Message: fmt.Sprintf(unsupportedEncodingMessageTemplate, string(encoding))}
	}
}

// Blob is an immutable file content object.
type Blob struct {
	Hash     Hash
	Content  string
	Encoding BlobEncoding
}

// ObjectType enumerates the kinds of objects a tree entry can reference.
type ObjectType string

// Tree entry object types.
const (
	ObjectTypeBlob   ObjectType = ObjectType(objectTypeBlobStringConstant)
	ObjectTypeTree   ObjectType = ObjectType(objectTypeTreeStringConstant)
	ObjectTypeCommit ObjectType = ObjectType(objectTypeCommitStringConstant)
)

// TreeEntryMode is the octal file mode of a tree entry as the service spells it.
type TreeEntryMode string

// Tree entry modes.
var (
	TreeEntryModeFile         = newTreeEntryMode(filemode.Regular)
	TreeEntryModeExecutable   = newTreeEntryMode(filemode.Executable)
	TreeEntryModeSubdirectory = newTreeEntryMode(filemode.Dir)
	TreeEntryModeSubmodule    = newTreeEntryMode(filemode.Submodule)
	TreeEntryModeSymlink      = newTreeEntryMode(filemode.Symlink)
)

func newTreeEntryMode(mode filemode.FileMode) TreeEntryMode {
	return TreeEntryMode(fmt.Sprintf(treeEntryModeTemplateConstant, uint32(mode)))
}

// objectType resolves the object type implied by the mode.
func (mode TreeEntryMode) objectType() (ObjectType, error) {
	parsedMode, parseError := filemode.New(string(mode))
	if parseError != nil {
		return "", InvalidInputError{FieldName: modeFieldNameConstant, Message: fmt.Sprintf(unsupportedModeMessageTemplate, string(mode))}
	}
	switch parsedMode {
	case filemode.Regular, filemode.Executable, filemode.Symlink:
		return ObjectTypeBlob, nil
	case filemode.Dir:
		return ObjectTypeTree, nil
	case filemode.Submodule:
		return ObjectTypeCommit, nil
	default:
		return "", InvalidInputError{FieldName: modeFieldNameConstant, Message: fmt.Sprintf(unsupportedModeMessageTemplate, string(mode))}
	}
}

// TreeEntry binds a repository path to an object.
type TreeEntry struct {
	Path string
	Mode TreeEntryMode
	Type ObjectType
	Hash Hash
}

// normalize fills the file mode and blob type defaults and validates the entry.
func (entry TreeEntry) normalize() (TreeEntry, error) {
	normalized := entry
	if pathError := ValidatePath(entry.Path); pathError != nil {
		return TreeEntry{}, pathError
	}
	if len(strings.TrimSpace(string(normalized.Mode))) == 0 {
		normalized.Mode = TreeEntryModeFile
	}
	impliedType, modeError := normalized.Mode.objectType()
	if modeError != nil {
		return TreeEntry{}, modeError
	}
	switch normalized.Type {
	case "":
		normalized.Type = impliedType
	case ObjectTypeBlob, ObjectTypeTree, ObjectTypeCommit:
		if normalized.Type != impliedType {
			return TreeEntry{}, InvalidInputError{FieldName: typeFieldNameConstant, Message: fmt.Sprintf(mismatchedObjectTypeMessageTemplate, string(normalized.Type), normalized.Mode)}
		}
	default:
		return TreeEntry{}, InvalidInputError{FieldName: typeFieldNameConstant, Message: fmt.Sprintf(unsupportedObjectTypeMessageTemplate, string(normalized.Type))}
	}
	if hashError := normalized.Hash.Validate(hashFieldNameConstant); hashError != nil {
		return TreeEntry{}, hashError
	}
	return normalized, nil
}

// Tree is an immutable snapshot of a directory listing.
type Tree struct {
	Hash      Hash
	Entries   []TreeEntry
	Truncated bool
}

// Lookup returns the last entry recorded for the path.
func (tree Tree) Lookup(path string) (TreeEntry, bool) {
	for entryIndex := len(tree.Entries) - 1; entryIndex >= 0; entryIndex-- {
		if tree.Entries[entryIndex].Path == path {
			return tree.Entries[entryIndex], true
		}
	}
	return TreeEntry{}, false
}

// Signature records authorship metadata assigned by the service.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is an immutable object binding a message, a tree and its parents.
type Commit struct {
	Hash    Hash
	Message string
	Tree    Hash
	Parents []Hash
	Author  Signature
}

// CommitRequest describes a commit to be created by the service.
type CommitRequest struct {
	Message string
	Tree    Hash
	Parents []Hash
}

// Branch is the service view of a named branch.
type Branch struct {
	Name   string
	Commit Hash
}

// BranchRef is a mutable pointer from a fully qualified reference name to a commit.
type BranchRef struct {
	Name   string
	Commit Hash
}

// BranchCreationOutcome distinguishes first-time branch creation from an idempotent re-run.
type BranchCreationOutcome string

// Branch creation outcomes.
const (
	BranchCreated        BranchCreationOutcome = BranchCreationOutcome(branchCreationCreatedStringConstant)
	BranchAlreadyExisted BranchCreationOutcome = BranchCreationOutcome(branchCreationExistedStringConstant)
)

// BranchCreation is the tagged result of CreateBranch.
type BranchCreation struct {
	Outcome BranchCreationOutcome
	Ref     BranchRef
}

// BranchReferenceName returns the fully qualified reference for a branch.
func BranchReferenceName(branchName string) string {
	return branchReferencePrefixConstant + branchName
}

// ValidateBranchName ensures the value is a short branch name.
func ValidateBranchName(branchName string) error {
	return validateBranchNameField(branchNameFieldNameConstant, branchName)
}

func validateBranchNameField(fieldName string, branchName string) error {
	if len(strings.TrimSpace(branchName)) == 0 {
		return InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	if strings.ContainsAny(branchName, " \t\r\n") {
		return InvalidInputError{FieldName: fieldName, Message: branchNameWhitespaceMessageConstant}
	}
	if strings.HasPrefix(branchName, referencesPrefixConstant) {
		return InvalidInputError{FieldName: fieldName, Message: branchNameReferencePrefixMessage}
	}
	return nil
}

// ValidatePath ensures a tree path is relative and free of dot segments.
func ValidatePath(path string) error {
	if len(strings.TrimSpace(path)) == 0 {
		return InvalidInputError{FieldName: pathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if strings.HasPrefix(path, pathSeparatorConstant) {
		return InvalidInputError{FieldName: pathFieldNameConstant, Message: pathAbsoluteMessageConstant}
	}
	if strings.HasSuffix(path, pathSeparatorConstant) {
		return InvalidInputError{FieldName: pathFieldNameConstant, Message: pathTrailingSeparatorMessageConstant}
	}
	for _, segment := range strings.Split(path, pathSeparatorConstant) {
		switch segment {
		case "", pathCurrentDirectorySegmentConstant, pathParentDirectorySegmentConstant:
			return InvalidInputError{FieldName: pathFieldNameConstant, Message: fmt.Sprintf(pathRelativeSegmentMessageTemplate, segment)}
		}
	}
	return nil
}
