package flash

import "errors"

var (
	// ErrProbeOpen marks a probe that could not be opened.
	ErrProbeOpen = errors.New("probe open failed")
	// ErrAttach marks a target chip that could not be attached.
	ErrAttach = errors.New("attach failed")
	// ErrDownload marks a firmware download that did not complete.
	ErrDownload = errors.New("download failed")
	// ErrUnknownFormat is returned when no image format can be derived.
	ErrUnknownFormat = errors.New("unknown image format")
	// ErrImageMissing is returned when fw_path does not name a readable file.
	ErrImageMissing = errors.New("firmware image missing")
	// ErrBaseAddressRequired is returned for raw binaries without a load address.
	ErrBaseAddressRequired = errors.New("base address required for bin images")
)
