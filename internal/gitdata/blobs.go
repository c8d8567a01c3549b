package gitdata

import (
	"context"

	"go.uber.org/zap"
)

const (
	blobCreatedMessageConstant  = "created blob"
	logFieldRepositoryConstant  = "repository"
	logFieldBlobConstant        = "blob"
	logFieldEncodingConstant    = "encoding"
	logFieldContentSizeConstant = "content_size"
)

// BlobStore creates immutable content objects.
type BlobStore struct {
	logger  *zap.Logger
	service ObjectService
}

// NewBlobStore constructs a BlobStore around the provided service.
func NewBlobStore(logger *zap.Logger, service ObjectService) (*BlobStore, error) {
	if service == nil {
		return nil, ErrServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{logger: logger, service: service}, nil
}

// CreateBlob stores content and returns the hash assigned by the service.
// An empty encoding is treated as utf-8. Identical content may or may not be
// deduplicated by the service; every returned hash is usable either way.
func (store *BlobStore) CreateBlob(executionContext context.Context, repository RepositoryIdentifier, content string, encoding BlobEncoding) (Hash, error) {
	if validationError := repository.Validate(); validationError != nil {
		return "", validationError
	}
	normalizedEncoding, encodingError := encoding.normalize()
	if encodingError != nil {
		return "", encodingError
	}

	blobHash, creationError := store.service.CreateBlob(executionContext, repository, content, normalizedEncoding)
	if creationError != nil {
		return "", classifyServiceError(OperationCreateBlob, creationError)
	}
	if blobHash.IsZero() {
		return "", NewOperationError(OperationCreateBlob, ErrRemoteFailure, errEmptyHashResponse)
	}

	store.logger.Debug(
		blobCreatedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldBlobConstant, blobHash.String()),
		zap.String(logFieldEncodingConstant, string(normalizedEncoding)),
		zap.Int(logFieldContentSizeConstant, len(content)),
	)

	return blobHash, nil
}
