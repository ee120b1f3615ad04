package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/zombor/docscan/internal/imageproc"
)

// Photo is a decoded capture
type Photo struct {
	Data     []byte
	Image    image.Image
	Position Position
}

type photoResult struct {
	photo *Photo
	err   error
}

// photoRequest is retained in Device.inFlight until the hardware reports
// back, so the callback stays reachable for the whole request
type photoRequest struct {
	device   *Device
	token    uint64
	position Position
	result   chan photoResult
}

// PhotoCaptured implements PhotoCallback
func (r *photoRequest) PhotoCaptured(data []byte, err error) {
	res := r.decode(data, err)
	// Hand back to the actor on a new goroutine: hardware may call back
	// from inside Session.CapturePhoto, while the actor is still busy.
	go r.device.finish(r, res)
}

func (r *photoRequest) decode(data []byte, err error) photoResult {
	if err != nil {
		return photoResult{err: fmt.Errorf("%w: %w", ErrCaptureFailed, err)}
	}
	if len(data) == 0 {
		return photoResult{err: ErrNoImageData}
	}
	img, err := imageproc.Decode(data, "")
	if err != nil {
		return photoResult{err: fmt.Errorf("%w: %w", ErrNoImageData, err)}
	}
	return photoResult{photo: &Photo{Data: data, Image: img, Position: r.position}}
}

// Device is the sole owner of the camera session. All fields below ops are
// only touched by the actor goroutine.
type Device struct {
	hw        Hardware
	ops       chan func()
	quit      chan struct{}
	closeOnce sync.Once

	session     Session
	configured  bool
	camera      Camera
	position    Position
	orientation Orientation
	capturing   bool
	nextToken   uint64
	inFlight    map[uint64]*photoRequest
}

// NewDevice starts the actor for hw. The back camera is used initially.
func NewDevice(hw Hardware) *Device {
	d := &Device{
		hw:       hw,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		position: PositionBack,
		inFlight: make(map[uint64]*photoRequest),
	}
	go d.loop()
	return d
}

func (d *Device) loop() {
	for {
		select {
		case op := <-d.ops:
			op()
		case <-d.quit:
			return
		}
	}
}

// do runs fn on the actor and waits for its result. ctx only bounds the
// wait for the actor to accept fn; once accepted, fn runs to completion.
func (d *Device) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case d.ops <- func() { errc <- fn() }:
	case <-d.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// finish clears the request bookkeeping on the actor and resumes the caller
func (d *Device) finish(r *photoRequest, res photoResult) {
	done := func() {
		delete(d.inFlight, r.token)
		d.capturing = false
		r.result <- res
	}
	select {
	case d.ops <- done:
	case <-d.quit:
		r.result <- res
	}
}

// selectCamera prefers the dual and wide modules at pos and falls back to
// any camera
func (d *Device) selectCamera(pos Position) Camera {
	for _, kind := range []CameraKind{KindDualWide, KindWideAngle} {
		if cam := d.hw.Camera(kind, pos); cam != nil {
			return cam
		}
	}
	return d.hw.AnyCamera()
}

func (d *Device) configureIfNeeded() error {
	if d.configured {
		return nil
	}
	cam := d.selectCamera(d.position)
	if cam == nil {
		return ErrNoDeviceAvailable
	}

	session := d.hw.NewSession()
	session.BeginConfiguration()
	if err := session.AddInput(cam); err != nil {
		session.CommitConfiguration()
		return fmt.Errorf("%w: %w", ErrInputCreationFailed, err)
	}
	if err := session.AddPhotoOutput(); err != nil {
		session.RemoveInput(cam)
		session.CommitConfiguration()
		return fmt.Errorf("%w: adding photo output: %w", ErrInputCreationFailed, err)
	}
	session.SetOrientation(d.orientation)
	session.CommitConfiguration()

	d.session = session
	d.camera = cam
	d.configured = true
	slog.Info("Camera configured", "camera", cam.ID(), "position", d.position)
	return nil
}

// Start configures the session if needed and starts it
func (d *Device) Start(ctx context.Context) error {
	return d.do(ctx, func() error {
		if err := d.configureIfNeeded(); err != nil {
			return err
		}
		if !d.session.IsRunning() {
			d.session.StartRunning()
		}
		return nil
	})
}

// Stop configures the session if needed and stops it
func (d *Device) Stop(ctx context.Context) error {
	return d.do(ctx, func() error {
		if err := d.configureIfNeeded(); err != nil {
			return err
		}
		if d.session.IsRunning() {
			d.session.StopRunning()
		}
		return nil
	})
}

// Running reports whether the session is running
func (d *Device) Running(ctx context.Context) bool {
	var running bool
	_ = d.do(ctx, func() error {
		running = d.configured && d.session.IsRunning()
		return nil
	})
	return running
}

// Position returns the position of the active camera
func (d *Device) Position(ctx context.Context) Position {
	var pos Position
	_ = d.do(ctx, func() error {
		pos = d.position
		return nil
	})
	return pos
}

// SetOrientation changes the orientation of the photo output
func (d *Device) SetOrientation(ctx context.Context, o Orientation) error {
	return d.do(ctx, func() error {
		d.orientation = o
		if d.configured {
			d.session.BeginConfiguration()
			d.session.SetOrientation(o)
			d.session.CommitConfiguration()
		}
		return nil
	})
}

// SetTorch turns the torch on or off. Cameras without a torch ignore it.
func (d *Device) SetTorch(ctx context.Context, on bool) error {
	return d.do(ctx, func() error {
		if err := d.configureIfNeeded(); err != nil {
			return err
		}
		if !d.camera.HasTorch() {
			return nil
		}
		if err := d.camera.LockForConfiguration(); err != nil {
			return fmt.Errorf("locking camera for configuration: %w", err)
		}
		defer d.camera.UnlockForConfiguration()
		if err := d.camera.SetTorch(on); err != nil {
			return fmt.Errorf("setting torch: %w", err)
		}
		return nil
	})
}

// Flip switches between the back and front cameras. It does nothing while
// a capture is in flight. When the new camera cannot be bound, the previous
// camera is bound again and ErrInputCreationFailed is returned.
func (d *Device) Flip(ctx context.Context) error {
	return d.do(ctx, func() error {
		if d.capturing {
			return nil
		}
		if err := d.configureIfNeeded(); err != nil {
			return err
		}

		previous := d.camera
		next := d.position.Opposite()

		d.session.BeginConfiguration()
		defer d.session.CommitConfiguration()
		d.session.RemoveInput(previous)

		cam := d.selectCamera(next)
		var bindErr error
		if cam == nil {
			bindErr = ErrNoDeviceAvailable
		} else {
			bindErr = d.session.AddInput(cam)
		}
		if bindErr != nil {
			if err := d.session.AddInput(previous); err != nil {
				// Leave the session to be rebuilt by the next operation.
				slog.Error("Failed to restore camera after flip", "camera", previous.ID(), "error", err)
				d.configured = false
			}
			d.session.SetOrientation(d.orientation)
			return fmt.Errorf("%w: %w", ErrInputCreationFailed, bindErr)
		}

		d.session.SetOrientation(d.orientation)
		d.camera = cam
		d.position = next
		slog.Info("Camera flipped", "camera", cam.ID(), "position", next)
		return nil
	})
}

// CapturePhoto takes one photo. It fails with ErrCaptureInProgress while
// another capture is in flight and never issues a second hardware request.
// The caller waits for the hardware callback or for ctx.
func (d *Device) CapturePhoto(ctx context.Context) (*Photo, error) {
	var result chan photoResult
	err := d.do(ctx, func() error {
		if d.capturing {
			return ErrCaptureInProgress
		}
		d.capturing = true
		if err := d.configureIfNeeded(); err != nil {
			d.capturing = false
			return err
		}

		settings := PhotoSettings{HighResolution: true, Flash: FlashOff}
		if d.position == PositionBack && d.camera.HasFlash() {
			settings.Flash = FlashAuto
		}

		d.nextToken++
		req := &photoRequest{
			device:   d,
			token:    d.nextToken,
			position: d.position,
			result:   make(chan photoResult, 1),
		}
		d.inFlight[req.token] = req
		result = req.result

		d.session.CapturePhoto(settings, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-result:
		return res.photo, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlight returns the number of outstanding photo requests
func (d *Device) InFlight(ctx context.Context) int {
	var n int
	_ = d.do(ctx, func() error {
		n = len(d.inFlight)
		return nil
	})
	return n
}

// Close stops the session and the actor
func (d *Device) Close() error {
	err := d.do(context.Background(), func() error {
		if d.configured && d.session.IsRunning() {
			d.session.StopRunning()
		}
		return nil
	})
	d.closeOnce.Do(func() { close(d.quit) })
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
