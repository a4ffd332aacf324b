package jtag

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Default USB identifiers for a CMSIS-DAP capable probe.
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	defaultPacketSize = 64
	defaultTimeout    = 5 * time.Second
)

// USBTransport handles packet-level USB communication with a CMSIS-DAP probe.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// NewUSBTransport opens a device matching vid:pid and claims its vendor-class
// interface. A non-empty serial selects among multiple attached probes.
func NewUSBTransport(vid, pid uint16, serial string) (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, err := openDevice(ctx, vid, pid, serial)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	// Auto-detach matters on Linux where hid/cdc drivers may hold the device.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: defaultPacketSize,
		timeout:    defaultTimeout,
	}
	if err := t.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

// openDevice picks the probe to talk to. Without a serial the first vid:pid
// match wins; with one, every match is inspected and the rest are released.
func openDevice(ctx *gousb.Context, vid, pid uint16, serial string) (*gousb.Device, error) {
	if serial == "" {
		dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
		if err != nil {
			return nil, fmt.Errorf("jtag: USB open: %w", err)
		}
		if dev == nil {
			return nil, fmt.Errorf("jtag: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
		}
		return dev, nil
	}

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		for _, dev := range devs {
			dev.Close()
		}
		return nil, fmt.Errorf("jtag: USB open: %w", err)
	}

	var picked *gousb.Device
	for _, dev := range devs {
		if picked == nil {
			if sn, err := dev.SerialNumber(); err == nil && sn == serial {
				picked = dev
				continue
			}
		}
		dev.Close()
	}
	if picked == nil {
		return nil, fmt.Errorf("jtag: no device with serial %q (VID:0x%04X PID:0x%04X)",
			serial, vid, pid)
	}
	return picked, nil
}

func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("jtag: get config: %w", err)
	}

	// CMSIS-DAP v2 exposes a vendor-specific (0xFF) interface with bulk
	// endpoints. Fall back to interface 0 when no vendor interface exists.
	intfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}
	if intfNum == -1 {
		intfNum = 0
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("jtag: claim interface %d: %w", intfNum, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
				t.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outNum == 0 || inNum == 0 {
		intf.Close()
		return fmt.Errorf("jtag: bulk endpoints not found")
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		intf.Close()
		return fmt.Errorf("jtag: open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		intf.Close()
		return fmt.Errorf("jtag: open IN endpoint: %w", err)
	}
	return nil
}

// WriteRead performs one command/response transaction. CMSIS-DAP packets are
// fixed size, so commands are padded to the endpoint packet size.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.Write(packet); err != nil {
		return nil, fmt.Errorf("jtag: USB write: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("jtag: USB read: %w", err)
	}
	return resp[:n], nil
}

// PacketSize returns the negotiated packet size.
func (t *USBTransport) PacketSize() int { return t.packetSize }

// Close releases USB resources.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// ProbeInfo describes a discovered USB debug probe.
type ProbeInfo struct {
	VID          uint16
	PID          uint16
	SerialNumber string
	Description  string
}

// EnumerateProbes lists connected CMSIS-DAP capable USB devices.
func EnumerateProbes() ([]ProbeInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorIDRaspberryPi && desc.Product == ProductIDCMSISDAP
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return nil, fmt.Errorf("jtag: enumerate devices: %w", err)
	}

	probes := make([]ProbeInfo, 0, len(devs))
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()
		probes = append(probes, ProbeInfo{
			VID:          uint16(dev.Desc.Vendor),
			PID:          uint16(dev.Desc.Product),
			SerialNumber: serial,
			Description:  fmt.Sprintf("%s %s", manufacturer, product),
		})
		dev.Close()
	}
	return probes, nil
}
