package extension

import "errors"

// Extension store errors.
var (
	// ErrMissingID is returned when an extension descriptor lacks an id.
	ErrMissingID = errors.New("extension descriptor: id is required")

	// ErrMissingName is returned when an extension descriptor lacks a name.
	ErrMissingName = errors.New("extension descriptor: name is required")

	// ErrMissingVersion is returned when an extension descriptor lacks a version.
	ErrMissingVersion = errors.New("extension descriptor: version is required")

	// ErrInvalidDescriptor is returned when extension.json is malformed.
	ErrInvalidDescriptor = errors.New("invalid extension descriptor")

	// ErrInvalidLanguageConfig is returned when a language config.toml is malformed.
	ErrInvalidLanguageConfig = errors.New("invalid language config")

	// ErrInvalidThemeFile is returned when a theme family file is malformed.
	ErrInvalidThemeFile = errors.New("invalid theme file")

	// ErrInvalidServerConfig is returned when a language server config.toml is malformed.
	ErrInvalidServerConfig = errors.New("invalid language server config")

	// ErrNotInstalled is returned when operating on an extension that is
	// not present in the installed directory.
	ErrNotInstalled = errors.New("extension is not installed")

	// ErrInvalidSource is returned when an install source is missing or
	// not a directory.
	ErrInvalidSource = errors.New("install source is not a directory")
)
