package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// spiFreq is the only bus clock nrzled accepts. It encodes each NRZ bit as
// three SPI bits, which yields the 800kHz WS281x data rate.
const spiFreq = 2500 * physic.KiloHertz

// NRZ drives WS281x-style panels through an SPI port.
type NRZ struct {
	mu    sync.Mutex
	dev   *nrzled.Dev
	port  spi.PortCloser // nil when the caller owns the port
	count int
}

// OpenNRZ initializes the host, opens the SPI port by name ("" for the first
// one) and attaches an NRZ encoder for count pixels.
func OpenNRZ(name string, count int) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	d, err := NewNRZ(p, count)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

// NewNRZ attaches an NRZ encoder to an already opened port.
func NewNRZ(p spi.Port, count int) (*NRZ, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: count,
		Channels:  3,
		Freq:      spiFreq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{dev: dev, count: count}, nil
}

func (n *NRZ) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return "nrz{closed}"
	}
	return n.dev.String()
}

func (n *NRZ) Write(rgb []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return fmt.Errorf("nrz closed")
	}
	if len(rgb) != n.count*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), n.count)
	}
	if _, err := n.dev.Write(rgb); err != nil {
		return fmt.Errorf("nrz write: %w", err)
	}
	return nil
}

func (n *NRZ) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return nil
	}
	err := n.dev.Halt()
	n.dev = nil
	if n.port != nil {
		if cerr := n.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
