package domain

import "errors"

var (
	// ErrConfig marks missing or malformed startup configuration
	ErrConfig = errors.New("configuration error")
	// ErrFetch marks a failed poll: transport, HTTP status or payload
	ErrFetch = errors.New("fetch error")
	// ErrAssetLoad marks a primary model that could not be loaded
	ErrAssetLoad = errors.New("asset load error")
	// ErrInvalidPosition marks a coordinate outside its valid range
	ErrInvalidPosition = errors.New("invalid position")
)
