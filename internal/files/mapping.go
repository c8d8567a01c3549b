package files

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/temirov/gitfleet/internal/commitflow"
	"github.com/temirov/gitfleet/internal/gitdata"
	pathutils "github.com/temirov/gitfleet/internal/utils/path"
)

const (
	mappingSeparatorConstant              = "="
	executablePermissionMaskConstant      = 0o111
	nullByteConstant                      = byte(0)
	mappingEmptyMessageConstant           = "file mapping must not be empty"
	mappingAbsoluteTemplateConstant       = "file mapping %q needs an explicit repository path (LOCAL=PATH)"
	mappingHalfEmptyTemplateConstant      = "file mapping %q must name both a local file and a repository path"
	duplicateRepositoryPathTemplate       = "repository path %q mapped more than once"
	localFileReadErrorTemplateConstant    = "unable to read %s: %w"
	localFileStatErrorTemplateConstant    = "unable to inspect %s: %w"
	localFileDirectoryTemplateConstant    = "%s is a directory"
	noFilesMessageConstant                = "at least one file mapping is required"
	repositoryPathInvalidTemplateConstant = "file mapping %q: %w"
)

// ErrNoFiles indicates a commit was requested without any file mappings.
var ErrNoFiles = errors.New(noFilesMessageConstant)

// Mapping pairs a local file with the repository path it is written to.
type Mapping struct {
	LocalPath      string
	RepositoryPath string
}

// ParseMapping interprets LOCAL=PATH. A relative local path without an
// explicit repository path is written to the same relative path.
func ParseMapping(mappingValue string) (Mapping, error) {
	trimmedValue := strings.TrimSpace(mappingValue)
	if len(trimmedValue) == 0 {
		return Mapping{}, errors.New(mappingEmptyMessageConstant)
	}

	localPath, repositoryPath, separated := strings.Cut(trimmedValue, mappingSeparatorConstant)
	localPath = strings.TrimSpace(localPath)
	repositoryPath = strings.TrimSpace(repositoryPath)
	if !separated {
		if filepath.IsAbs(localPath) {
			return Mapping{}, fmt.Errorf(mappingAbsoluteTemplateConstant, mappingValue)
		}
		repositoryPath = filepath.ToSlash(filepath.Clean(localPath))
	}
	if len(localPath) == 0 || len(repositoryPath) == 0 {
		return Mapping{}, fmt.Errorf(mappingHalfEmptyTemplateConstant, mappingValue)
	}
	if pathError := gitdata.ValidatePath(repositoryPath); pathError != nil {
		return Mapping{}, fmt.Errorf(repositoryPathInvalidTemplateConstant, mappingValue, pathError)
	}

	return Mapping{LocalPath: localPath, RepositoryPath: repositoryPath}, nil
}

// ParseMappings parses every value and rejects repeated repository paths.
func ParseMappings(mappingValues []string) ([]Mapping, error) {
	if len(mappingValues) == 0 {
		return nil, ErrNoFiles
	}
	mappings := make([]Mapping, 0, len(mappingValues))
	seenPaths := make(map[string]struct{}, len(mappingValues))
	for _, mappingValue := range mappingValues {
		mapping, parseError := ParseMapping(mappingValue)
		if parseError != nil {
			return nil, parseError
		}
		if _, seen := seenPaths[mapping.RepositoryPath]; seen {
			return nil, fmt.Errorf(duplicateRepositoryPathTemplate, mapping.RepositoryPath)
		}
		seenPaths[mapping.RepositoryPath] = struct{}{}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

// FileSystem exposes the local file operations the loader needs.
type FileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem reads from the host file system.
type OSFileSystem struct{}

// Stat delegates to os.Stat.
func (OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile delegates to os.ReadFile.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader turns mappings into commit file changes.
type Loader struct {
	fileSystem   FileSystem
	homeExpander *pathutils.HomeExpander
}

// NewLoader constructs a Loader; a nil file system reads the host.
func NewLoader(fileSystem FileSystem) *Loader {
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}
	return &Loader{fileSystem: fileSystem, homeExpander: pathutils.NewHomeExpander()}
}

// Load reads every mapped file. Text files are sent as utf-8, anything else
// as base64, and executable local files keep the executable mode.
func (loader *Loader) Load(mappings []Mapping) ([]commitflow.FileChange, error) {
	if len(mappings) == 0 {
		return nil, ErrNoFiles
	}

	changes := make([]commitflow.FileChange, 0, len(mappings))
	for _, mapping := range mappings {
		localPath := loader.homeExpander.Expand(mapping.LocalPath)
		fileInfo, statError := loader.fileSystem.Stat(localPath)
		if statError != nil {
			return nil, fmt.Errorf(localFileStatErrorTemplateConstant, localPath, statError)
		}
		if fileInfo.IsDir() {
			return nil, fmt.Errorf(localFileDirectoryTemplateConstant, localPath)
		}
		contents, readError := loader.fileSystem.ReadFile(localPath)
		if readError != nil {
			return nil, fmt.Errorf(localFileReadErrorTemplateConstant, localPath, readError)
		}

		change := commitflow.FileChange{Path: mapping.RepositoryPath, Mode: gitdata.TreeEntryModeFile}
		if fileInfo.Mode().Perm()&executablePermissionMaskConstant != 0 {
			change.Mode = gitdata.TreeEntryModeExecutable
		}
		if isText(contents) {
			change.Content = string(contents)
			change.Encoding = gitdata.BlobEncodingUTF8
		} else {
			change.Content = base64.StdEncoding.EncodeToString(contents)
			change.Encoding = gitdata.BlobEncodingBase64
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func isText(contents []byte) bool {
	for _, contentByte := range contents {
		if contentByte == nullByteConstant {
			return false
		}
	}
	return utf8.Valid(contents)
}
