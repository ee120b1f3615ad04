package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

var errNoFrame = errors.New("no frame available")

// SpoolHardware emulates a handset with a back and a front camera. Each
// camera captures by consuming the oldest file (by name) from its own
// directory under the spool root: <root>/back and <root>/front. A camera
// exists only while its directory exists.
type SpoolHardware struct {
	root  string
	back  *spoolCamera
	front *spoolCamera
}

// NewSpoolHardware creates the spool directories under root
func NewSpoolHardware(root string) (*SpoolHardware, error) {
	hw := &SpoolHardware{
		root:  root,
		back:  &spoolCamera{id: "spool-back", kind: KindDualWide, position: PositionBack, dir: filepath.Join(root, "back"), torch: true, flash: true},
		front: &spoolCamera{id: "spool-front", kind: KindWideAngle, position: PositionFront, dir: filepath.Join(root, "front")},
	}
	for _, cam := range []*spoolCamera{hw.back, hw.front} {
		if err := os.MkdirAll(cam.dir, 0755); err != nil {
			return nil, fmt.Errorf("creating spool directory: %w", err)
		}
	}
	return hw, nil
}

// Dir returns the directory frames for pos are read from
func (h *SpoolHardware) Dir(pos Position) string {
	if pos == PositionFront {
		return h.front.dir
	}
	return h.back.dir
}

// Camera implements Hardware
func (h *SpoolHardware) Camera(kind CameraKind, pos Position) Camera {
	for _, cam := range []*spoolCamera{h.back, h.front} {
		if cam.kind == kind && cam.position == pos && cam.available() {
			return cam
		}
	}
	return nil
}

// AnyCamera implements Hardware
func (h *SpoolHardware) AnyCamera() Camera {
	for _, cam := range []*spoolCamera{h.back, h.front} {
		if cam.available() {
			return cam
		}
	}
	return nil
}

// NewSession implements Hardware
func (h *SpoolHardware) NewSession() Session {
	return &spoolSession{}
}

type spoolCamera struct {
	id       string
	kind     CameraKind
	position Position
	dir      string
	torch    bool
	flash    bool

	mu      sync.Mutex
	locked  bool
	torchOn bool
}

func (c *spoolCamera) available() bool {
	info, err := os.Stat(c.dir)
	return err == nil && info.IsDir()
}

func (c *spoolCamera) ID() string         { return c.id }
func (c *spoolCamera) Kind() CameraKind   { return c.kind }
func (c *spoolCamera) Position() Position { return c.position }
func (c *spoolCamera) HasTorch() bool     { return c.torch }
func (c *spoolCamera) HasFlash() bool     { return c.flash }

func (c *spoolCamera) LockForConfiguration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return errors.New("camera already locked")
	}
	c.locked = true
	return nil
}

func (c *spoolCamera) UnlockForConfiguration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
}

func (c *spoolCamera) SetTorch(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.locked {
		return errors.New("camera not locked for configuration")
	}
	c.torchOn = on
	return nil
}

// nextFrame reads and removes the oldest frame
func (c *spoolCamera) nextFrame() ([]byte, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, errNoFrame
	}
	slices.Sort(names)

	path := filepath.Join(c.dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("removing frame: %w", err)
	}
	return data, nil
}

type spoolSession struct {
	mu      sync.Mutex
	input   *spoolCamera
	output  bool
	running bool
}

func (s *spoolSession) BeginConfiguration()  {}
func (s *spoolSession) CommitConfiguration() {}

func (s *spoolSession) AddInput(cam Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spool, ok := cam.(*spoolCamera)
	if !ok {
		return fmt.Errorf("unsupported camera %s", cam.ID())
	}
	if !spool.available() {
		return fmt.Errorf("camera %s is unavailable", cam.ID())
	}
	if s.input != nil {
		return errors.New("session already has an input")
	}
	s.input = spool
	return nil
}

func (s *spoolSession) RemoveInput(cam Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != nil && s.input.ID() == cam.ID() {
		s.input = nil
	}
}

func (s *spoolSession) AddPhotoOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = true
	return nil
}

func (s *spoolSession) SetOrientation(Orientation) {}

func (s *spoolSession) StartRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

func (s *spoolSession) StopRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *spoolSession) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CapturePhoto delivers the next frame on a separate goroutine
func (s *spoolSession) CapturePhoto(_ PhotoSettings, cb PhotoCallback) {
	s.mu.Lock()
	input, running, output := s.input, s.running, s.output
	s.mu.Unlock()

	go func() {
		switch {
		case input == nil || !output:
			cb.PhotoCaptured(nil, errors.New("session has no input"))
		case !running:
			cb.PhotoCaptured(nil, errors.New("session is not running"))
		default:
			cb.PhotoCaptured(input.nextFrame())
		}
	}()
}
