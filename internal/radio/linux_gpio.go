package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/warthog618/go-gpiocdev"
	hamlib "github.com/xylo04/goHamlib"

	"github.com/mbor/blink/internal/timing"
)

// LinuxGPIOConfig names the GPIO chip/lines and rig-control endpoint for
// a CSS radio module wired to a Linux host's GPIO header.
type LinuxGPIOConfig struct {
	Chip        string // e.g. "gpiochip0"
	ResetLine   int    // radio module's RST pin
	IRQLine     int    // radio module's DIO0 (RX/TX-done) pin
	RigModel    int    // hamlib rig model id for the module's CAT interface
	RigDevGlob  string // udev subsystem/devtype hint used to wait for the CAT device node
	Frequency   uint64
	TXPowerDBm  int
}

// LinuxGPIO drives a real radio module: RST over a GPIO output line,
// completion notification over a GPIO input line watched for edges, and
// frequency/power control over a hamlib-managed CAT link.
type LinuxGPIO struct {
	cfg LinuxGPIOConfig

	mu      sync.Mutex
	busy    bool
	pending Op
	started time.Time

	resetLine *gpiocdev.Line
	irqLine   *gpiocdev.Line
	rig       *hamlib.Rig

	completions chan Status
}

// NewLinuxGPIO waits for the rig's control device to appear (via udev),
// requests the reset and IRQ GPIO lines, and opens the hamlib rig
// session. It does not configure the radio — call Reset for that, as
// the protocol core does on blink_reset().
func NewLinuxGPIO(ctx context.Context, cfg LinuxGPIOConfig) (*LinuxGPIO, error) {
	var devnode, waitErr = waitForDevice(ctx, cfg.RigDevGlob)
	if waitErr != nil {
		return nil, fmt.Errorf("radio: waiting for control device: %w", waitErr)
	}

	var r = &LinuxGPIO{cfg: cfg, completions: make(chan Status, 1)}

	var resetLine, resetErr = gpiocdev.RequestLine(cfg.Chip, cfg.ResetLine, gpiocdev.AsOutput(1))
	if resetErr != nil {
		return nil, fmt.Errorf("radio: requesting reset line: %w", resetErr)
	}
	r.resetLine = resetLine

	var irqLine, irqErr = gpiocdev.RequestLine(cfg.Chip, cfg.IRQLine,
		gpiocdev.WithRisingEdge, gpiocdev.WithEventHandler(r.onIRQ))
	if irqErr != nil {
		resetLine.Close() //nolint:errcheck
		return nil, fmt.Errorf("radio: requesting IRQ line: %w", irqErr)
	}
	r.irqLine = irqLine

	var rig, rigErr = hamlib.Open(cfg.RigModel, devnode)
	if rigErr != nil {
		irqLine.Close()   //nolint:errcheck
		resetLine.Close() //nolint:errcheck
		return nil, fmt.Errorf("radio: opening rig control: %w", rigErr)
	}
	r.rig = rig

	return r, nil
}

// waitForDevice blocks until a device matching subsystem appears (or the
// context is cancelled), returning its device node path. This replaces
// racing the boot-time hotplug order by hand.
func waitForDevice(ctx context.Context, subsystem string) (string, error) {
	var u udev.Udev
	var mon = u.NewMonitorFromNetlink("udev")
	mon.FilterAddMatchSubsystem(subsystem)

	deviceChan, errChan, startErr := mon.DeviceChan(ctx)
	if startErr != nil {
		return "", startErr
	}

	for {
		select {
		case dev := <-deviceChan:
			if dev != nil && dev.Action() == "add" {
				return dev.Devnode(), nil
			}
		case err := <-errChan:
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (r *LinuxGPIO) onIRQ(gpiocdev.LineEvent) {
	r.mu.Lock()
	if !r.busy {
		r.mu.Unlock()
		return // spurious edge before any command was issued; ignore
	}
	var op = r.pending
	r.busy = false
	r.mu.Unlock()

	// A real backend would read the module's status/FIFO registers here;
	// this adapter reports the pending op completed with no payload,
	// leaving frame extraction to whatever SPI/register layer a concrete
	// deployment plugs in alongside this GPIO control plane.
	r.completions <- Status{Op: op, RxTime: timing.Ticks(time.Since(r.started))}
}

func (r *LinuxGPIO) start(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return ErrBusy
	}
	r.busy = true
	r.pending = op
	r.started = time.Now()
	return nil
}

// Reset pulses RST low then high and sets the configured frequency and
// power via the hamlib CAT link — the Go equivalent of blink_reset()'s
// os_radio(RADIO_RST) plus DEFAULT_FREQ/DEFAULT_TXPOWER. It does not
// program the modulation parameter set; the module keeps whatever
// modulation it already has.
func (r *LinuxGPIO) Reset() error {
	if err := r.resetLine.SetValue(0); err != nil {
		return fmt.Errorf("radio: asserting reset: %w", err)
	}
	time.Sleep(1 * time.Millisecond)
	if err := r.resetLine.SetValue(1); err != nil {
		return fmt.Errorf("radio: releasing reset: %w", err)
	}

	if err := r.rig.SetFreq(hamlib.VFOCurrent, float64(r.cfg.Frequency)); err != nil {
		return fmt.Errorf("radio: setting frequency: %w", err)
	}
	if err := r.rig.SetLevel(hamlib.LevelRFPower, float32(r.cfg.TXPowerDBm)); err != nil {
		return fmt.Errorf("radio: setting TX power: %w", err)
	}

	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
	return nil
}

func (r *LinuxGPIO) Transmit([]byte) error        { return r.start(OpTransmit) }
func (r *LinuxGPIO) ReceiveContinuous() error      { return r.start(OpReceiveContinuous) }
func (r *LinuxGPIO) ReceiveTimed(int) error        { return r.start(OpReceiveTimed) }
func (r *LinuxGPIO) CAD() error                    { return r.start(OpCAD) }
func (r *LinuxGPIO) Completions() <-chan Status    { return r.completions }

// Close releases the GPIO lines and rig session.
func (r *LinuxGPIO) Close() error {
	var errs []error
	if err := r.irqLine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.resetLine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.rig.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("radio: closing: %v", errs)
	}
	return nil
}
