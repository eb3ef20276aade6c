package upload

import "errors"

var (
	ErrUploadFailed    = errors.New("asset upload failed")
	ErrObjectNotFound  = errors.New("object not found")
	ErrNilBody         = errors.New("asset body must not be nil")
	ErrEmptyUser       = errors.New("user id must not be empty")
	ErrForeignLocation = errors.New("url does not belong to this object store")
)
