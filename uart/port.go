package uart

import (
	"context"
	"fmt"

	"go.bug.st/serial"

	"github.com/arloliu/go-arqlink/link"
)

// OpenPort opens the serial port name at baud, 8N1.
func OpenPort(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("uart: failed to open %s: %w", name, err)
	}

	return port, nil
}

// ListPorts returns the names of the serial ports found on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("uart: failed to list ports: %w", err)
	}

	return ports, nil
}

// Dial opens the serial port named in cfg and starts a Link on it.
func Dial(ctx context.Context, cfg *Config, onData link.DataHandler) (*Link, error) {
	if cfg == nil {
		return nil, link.ErrConfigNil
	}

	port, err := OpenPort(cfg.portName, cfg.baudRate)
	if err != nil {
		return nil, err
	}

	l, err := NewLink(ctx, port, cfg, onData)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return l, nil
}
