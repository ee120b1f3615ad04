package capture

import "errors"

var (
	// ErrNoDeviceAvailable is returned when no camera exists
	ErrNoDeviceAvailable = errors.New("no capture device available")
	// ErrInputCreationFailed is returned when a camera cannot be bound to the session
	ErrInputCreationFailed = errors.New("could not create camera input")
	// ErrCaptureInProgress is returned when a photo is requested while another is in flight
	ErrCaptureInProgress = errors.New("capture already in progress")
	// ErrCaptureFailed wraps the hardware error of a failed capture
	ErrCaptureFailed = errors.New("capture failed")
	// ErrNoImageData is returned when a capture succeeds without a decodable image
	ErrNoImageData = errors.New("no image data")
	// ErrClosed is returned by operations on a closed Device
	ErrClosed = errors.New("capture device closed")
)
