package pricing

import "errors"

// Common errors returned by the pricing package.
var (
	// ErrPriceFileNotFound is returned when a price file does not exist.
	ErrPriceFileNotFound = errors.New("price file not found")

	// ErrInvalidPriceFile is returned when a price file cannot be decoded.
	ErrInvalidPriceFile = errors.New("invalid price file")

	// ErrUnsupportedFormat is returned for price files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported price file format: must be .yaml, .yml, .toml, or .json")

	// ErrFetchFailed is returned when the remote price list cannot be downloaded.
	ErrFetchFailed = errors.New("price list fetch failed")
)
