// Package uart runs a link.Session over a real byte stream: a serial port
// opened with go.bug.st/serial, or any io.ReadWriteCloser such as a
// net.Conn.
//
//	cfg, _ := uart.NewConfig("/dev/ttyUSB0",
//	    uart.WithBaudRate(115200),
//	    uart.WithLinkOptions(link.WithAckDelay(50*time.Millisecond)),
//	)
//	l, err := uart.Dial(ctx, cfg, func(p []byte) {
//	    // handle payload
//	})
//	...
//	err = l.Send([]byte("hello"))
//	...
//	l.Close()
package uart
