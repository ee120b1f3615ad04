// Package capture owns the camera. A Device serialises every operation on
// the capture session through a single goroutine and allows at most one
// photo request in flight.
package capture

// Position is the side of the handset a camera faces
type Position int

const (
	PositionBack Position = iota
	PositionFront
)

func (p Position) String() string {
	if p == PositionFront {
		return "front"
	}
	return "back"
}

// Opposite returns the other position
func (p Position) Opposite() Position {
	if p == PositionFront {
		return PositionBack
	}
	return PositionFront
}

// CameraKind distinguishes physical camera modules
type CameraKind int

const (
	KindDualWide CameraKind = iota
	KindWideAngle
	KindOther
)

// Orientation of the photo output connection
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationLandscapeLeft
	OrientationLandscapeRight
	OrientationPortraitUpsideDown
)

// FlashMode for a single photo
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashAuto
)

// PhotoSettings describes one capture request
type PhotoSettings struct {
	HighResolution bool
	Flash          FlashMode
}

// Camera is one physical capture device
type Camera interface {
	ID() string
	Kind() CameraKind
	Position() Position
	HasTorch() bool
	HasFlash() bool
	// LockForConfiguration must succeed before SetTorch is called
	LockForConfiguration() error
	UnlockForConfiguration()
	SetTorch(on bool) error
}

// PhotoCallback receives the result of a capture. It may be invoked on any
// goroutine, including the one that issued the request.
type PhotoCallback interface {
	PhotoCaptured(data []byte, err error)
}

// Session binds a camera input to a photo output
type Session interface {
	BeginConfiguration()
	CommitConfiguration()
	AddInput(cam Camera) error
	RemoveInput(cam Camera)
	AddPhotoOutput() error
	SetOrientation(o Orientation)
	StartRunning()
	StopRunning()
	IsRunning() bool
	CapturePhoto(settings PhotoSettings, cb PhotoCallback)
}

// Hardware discovers cameras and creates sessions
type Hardware interface {
	// Camera returns the camera of kind at pos, or nil
	Camera(kind CameraKind, pos Position) Camera
	// AnyCamera returns any available video camera, or nil
	AnyCamera() Camera
	NewSession() Session
}
