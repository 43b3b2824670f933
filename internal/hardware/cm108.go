package hardware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/gousb"
)

var (
	// ErrDeviceNotFound indicates the CM108 is not attached.
	ErrDeviceNotFound = errors.New("cm108 device not found")

	// ErrInterfaceClaim indicates the HID interface could not be claimed.
	ErrInterfaceClaim = errors.New("failed to claim cm108 hid interface")

	// ErrNotConnected is returned by operations on a degraded gateway.
	ErrNotConnected = errors.New("cm108 not connected")
)

const (
	// GPIO 3 carries PTT on the CM108 (pin 13).
	pttGPIOMask = 0x04

	// Bit 0x02 of input report byte 0 reflects the carrier-detect line.
	carrierBit = 0x02

	hidSetReport   = 0x09
	hidReportValue = 0x0200
	usbClassHID    = 3

	controlTimeout = time.Second
)

// Config contains CM108 device parameters.
type Config struct {
	VendorID    uint16
	ProductID   uint16
	ReadTimeout time.Duration
}

// Gateway is the carrier-detect/PTT capability. The CM108 provides the
// production implementation; tests inject fakes.
type Gateway interface {
	SetPTT(active bool) error
	ReadCarrierDetect() bool
	Connected() bool
	Close() error
}

// CM108 drives the C-Media CM108/CM119 USB sound adapter's GPIO lines
// over its HID interface: an output report keys PTT, an interrupt input
// report carries the carrier-detect bit. On any setup failure the
// gateway degrades to a disconnected state where all operations are
// no-ops, rather than taking down the process.
type CM108 struct {
	cfg    Config
	logger *slog.Logger

	usbCtx    *gousb.Context
	dev       *gousb.Device
	usbCfg    *gousb.Config
	intf      *gousb.Interface
	endpoint  *gousb.InEndpoint
	intfNum   int
	connected bool

	// readReport reads one interrupt input report. Bound to the
	// claimed endpoint in Open; tests script it directly.
	readReport func(ctx context.Context, buf []byte) (int, error)

	mu          sync.Mutex
	lastCarrier bool
}

// Open locates and claims the CM108. The returned gateway is usable
// even when err is non-nil; it is simply disconnected.
func Open(cfg Config, logger *slog.Logger) (*CM108, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}

	c := &CM108{cfg: cfg, logger: logger}

	usbCtx := gousb.NewContext()
	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil || dev == nil {
		usbCtx.Close()
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
		return c, ErrDeviceNotFound
	}

	dev.ControlTimeout = controlTimeout

	// Detach the kernel HID driver before claiming; it is restored on
	// interface release.
	if err := dev.SetAutoDetach(true); err != nil {
		logger.Warn("Failed to enable kernel driver auto-detach",
			slog.String("error", err.Error()),
		)
	}

	usbConfig, intf, endpoint, err := claimHID(dev)
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return c, fmt.Errorf("%w: %v", ErrInterfaceClaim, err)
	}

	c.usbCtx = usbCtx
	c.dev = dev
	c.usbCfg = usbConfig
	c.intf = intf
	c.endpoint = endpoint
	c.intfNum = intf.Setting.Number
	c.readReport = endpoint.ReadContext
	c.connected = true

	logger.Info("CM108 connected",
		slog.String("vendor_id", fmt.Sprintf("%04x", cfg.VendorID)),
		slog.String("product_id", fmt.Sprintf("%04x", cfg.ProductID)),
		slog.Int("hid_interface", c.intfNum),
	)

	return c, nil
}

// claimHID claims the device's HID interface and resolves its interrupt
// IN endpoint.
func claimHID(dev *gousb.Device) (*gousb.Config, *gousb.Interface, *gousb.InEndpoint, error) {
	usbConfig, err := dev.Config(1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("device config: %w", err)
	}

	for _, ifDesc := range usbConfig.Desc.Interfaces {
		alt := ifDesc.AltSettings[0]
		if alt.Class != usbClassHID {
			continue
		}

		intf, err := usbConfig.Interface(ifDesc.Number, 0)
		if err != nil {
			usbConfig.Close()
			return nil, nil, nil, fmt.Errorf("claim interface %d: %w", ifDesc.Number, err)
		}

		for _, epDesc := range alt.Endpoints {
			if epDesc.Direction != gousb.EndpointDirectionIn {
				continue
			}

			endpoint, err := intf.InEndpoint(epDesc.Number)
			if err != nil {
				intf.Close()
				usbConfig.Close()
				return nil, nil, nil, fmt.Errorf("in endpoint %d: %w", epDesc.Number, err)
			}

			return usbConfig, intf, endpoint, nil
		}

		intf.Close()
		usbConfig.Close()
		return nil, nil, nil, fmt.Errorf("hid interface %d has no IN endpoint", ifDesc.Number)
	}

	usbConfig.Close()
	return nil, nil, nil, fmt.Errorf("no hid interface on device")
}

// SetPTT asserts or deasserts the PTT GPIO line. Idempotent and safe to
// call redundantly. Failures are logged and non-fatal; the caller still
// owns pairing every assert with an eventual deassert.
func (c *CM108) SetPTT(active bool) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	report := pttReport(active)
	_, err := c.dev.Control(
		gousb.ControlOut|gousb.ControlClass|gousb.ControlInterface,
		hidSetReport, hidReportValue, uint16(c.intfNum), report,
	)
	if err != nil {
		c.logger.Warn("PTT transfer failed",
			slog.Bool("active", active),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ptt transfer: %w", err)
	}

	return nil
}

// ReadCarrierDetect performs a bounded-wait read of the input report.
// On timeout the previously observed value is returned so a slow
// device never produces a spurious transition.
func (c *CM108) ReadCarrierDetect() bool {
	c.mu.Lock()
	last := c.lastCarrier
	c.mu.Unlock()

	if !c.Connected() || c.readReport == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadTimeout)
	defer cancel()

	buf := make([]byte, 4)
	n, err := c.readReport(ctx, buf)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return last
		}
		return false
	}

	if n < 1 {
		return last
	}

	carrier := carrierFromReport(buf)
	c.mu.Lock()
	c.lastCarrier = carrier
	c.mu.Unlock()

	return carrier
}

// Connected reports whether the HID interface is claimed.
func (c *CM108) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close deasserts PTT, releases the HID interface (restoring the
// kernel driver) and closes the device.
func (c *CM108) Close() error {
	if !c.Connected() {
		return nil
	}

	// Best effort: the transmitter must not stay keyed across restarts.
	if err := c.SetPTT(false); err != nil {
		c.logger.Warn("Failed to deassert PTT during close",
			slog.String("error", err.Error()),
		)
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.intf.Close()
	c.usbCfg.Close()

	if err := c.dev.Close(); err != nil {
		c.usbCtx.Close()
		return fmt.Errorf("close device: %w", err)
	}

	return c.usbCtx.Close()
}

// pttReport builds the 4-byte GPIO output report keying or releasing
// the PTT line.
func pttReport(active bool) []byte {
	data := byte(0x00)
	if active {
		data = pttGPIOMask
	}
	return []byte{0x00, pttGPIOMask, data, 0x00}
}

// carrierFromReport extracts the carrier-detect bit from an input
// report.
func carrierFromReport(report []byte) bool {
	if len(report) == 0 {
		return false
	}
	return report[0]&carrierBit != 0
}
