package bgapi

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/wedo-robotics/wedo-go/pkg/ble"
	"github.com/wedo-robotics/wedo-go/pkg/blelog"
)

// duplex is an in-memory stand-in for the dongle tty: the test writes event
// frames into the read side and inspects what the Conn wrote.
type duplex struct {
	in  *io.PipeReader
	out bytes.Buffer
	mu  sync.Mutex
}

func newDuplex() (*duplex, *io.PipeWriter) {
	r, w := io.Pipe()
	return &duplex{in: r}, w
}

func (d *duplex) Read(p []byte) (int, error) { return d.in.Read(p) }

func (d *duplex) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Write(p)
}

func (d *duplex) Close() error { return d.in.Close() }

func (d *duplex) written(t *testing.T) []Frame {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()

	var frames []Frame
	r := bytes.NewReader(d.out.Bytes())
	for r.Len() > 0 {
		f, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("re-reading written frames: %v", err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestConn_DispatchOrder(t *testing.T) {
	link, feed := newDuplex()
	conn := NewConn(link, Config{})

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	conn.SetHandlers(Handlers{
		OnDongleInfo: func(info DongleInfo) {
			mu.Lock()
			defer mu.Unlock()
			if info.Major != 1 || info.Minor != 3 {
				t.Errorf("DongleInfo = %+v", info)
			}
			seen = append(seen, "info")
		},
		OnScanResponse: func(sr ScanResponse) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, "scan:"+sr.Sender.String())
		},
		OnConnectionDisconnected: func(ConnectionDisconnected) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, "disconnected")
			close(done)
		},
	})

	go conn.Run(context.Background())

	// response to system_get_info: 12-byte payload
	writeTestFrame(t, feed, Frame{Type: MsgTypeCommand, Class: ClassSystem, ID: cmdSystemGetInfo,
		Payload: []byte{1, 0, 3, 0, 9, 0, 0, 1, 5, 0, 3, 1}})
	// scan response from aa:...:aa
	writeTestFrame(t, feed, Frame{Type: MsgTypeEvent, Class: ClassGAP, ID: evtGAPScanResponse,
		Payload: []byte{0xd8, 0x00, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0x00, 0x00, 0x00}})
	// disconnect event
	writeTestFrame(t, feed, Frame{Type: MsgTypeEvent, Class: ClassConnection, ID: evtConnectionDisconn,
		Payload: []byte{0x01, 0x13, 0x02}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"info", "scan:aa:aa:aa:aa:aa:aa", "disconnected"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestConn_CommandEncoding(t *testing.T) {
	link, _ := newDuplex()
	conn := NewConn(link, Config{})

	addr, err := ble.ParseAddress("00:07:80:2e:1f:a3", ble.AddrTypePublic)
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.SystemGetInfo(); err != nil {
		t.Fatal(err)
	}
	if err := conn.GAPSetScanParameters(10, 250, true); err != nil {
		t.Fatal(err)
	}
	if err := conn.GAPConnectDirect(addr, 60, 76, 100, 0); err != nil {
		t.Fatal(err)
	}
	if err := conn.ATTClientReadByHandle(1, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := conn.Disconnect(1); err != nil {
		t.Fatal(err)
	}

	frames := link.written(t)
	if len(frames) != 5 {
		t.Fatalf("wrote %d frames, want 5", len(frames))
	}

	scan := frames[1]
	if scan.Class != ClassGAP || scan.ID != cmdGAPSetScanParameters {
		t.Errorf("scan params frame header = %+v", scan)
	}
	if !bytes.Equal(scan.Payload, []byte{10, 0, 250, 0, 1}) {
		t.Errorf("scan params payload = %v", scan.Payload)
	}

	connect := frames[2]
	wantConnect := []byte{0xa3, 0x1f, 0x2e, 0x80, 0x07, 0x00, 0x00, 60, 0, 76, 0, 100, 0, 0, 0}
	if !bytes.Equal(connect.Payload, wantConnect) {
		t.Errorf("connect payload = %v, want %v", connect.Payload, wantConnect)
	}

	read := frames[3]
	if !bytes.Equal(read.Payload, []byte{1, 0x10, 0x00}) {
		t.Errorf("read payload = %v", read.Payload)
	}

	disc := frames[4]
	if disc.Class != ClassConnection || disc.ID != cmdConnectionDisconnect || !bytes.Equal(disc.Payload, []byte{1}) {
		t.Errorf("disconnect frame = %+v", disc)
	}
}

func TestConn_CaptureTrace(t *testing.T) {
	link, feed := newDuplex()
	var capture recordingLogger
	conn := NewConn(link, Config{Capture: &capture, ScanID: "pass"})

	done := make(chan struct{})
	conn.SetHandlers(Handlers{
		OnDiscoveryEnded: func(DiscoveryEnded) { close(done) },
	})
	go conn.Run(context.Background())

	if err := conn.GAPEndProcedure(); err != nil {
		t.Fatal(err)
	}
	writeTestFrame(t, feed, Frame{Type: MsgTypeCommand, Class: ClassGAP, ID: cmdGAPEndProcedure,
		Payload: []byte{0x00, 0x00}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	events := capture.events()
	// outbound frame + outbound command + inbound frame
	var out, in, cmds int
	for _, e := range events {
		if e.ScanID != "pass" {
			t.Errorf("ScanID = %q, want pass", e.ScanID)
		}
		switch {
		case e.Frame != nil && e.Direction == blelog.DirectionOut:
			out++
		case e.Frame != nil && e.Direction == blelog.DirectionIn:
			in++
		case e.Command != nil:
			cmds++
			if e.Command.Name != "gap_end_procedure" {
				t.Errorf("command name = %q", e.Command.Name)
			}
		}
	}
	if out != 1 || in != 1 || cmds != 1 {
		t.Errorf("capture counts out=%d in=%d cmds=%d, want 1 each", out, in, cmds)
	}
}

func TestConn_RunStopsOnCancel(t *testing.T) {
	link, _ := newDuplex()
	conn := NewConn(link, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if err := conn.SystemGetInfo(); err != ErrConnClosed {
		t.Errorf("send after close error = %v, want ErrConnClosed", err)
	}
}

func writeTestFrame(t *testing.T, w io.Writer, f Frame) {
	t.Helper()
	if err := WriteFrame(w, f); err != nil {
		t.Fatalf("writing test frame: %v", err)
	}
}

type recordingLogger struct {
	mu sync.Mutex
	ev []blelog.Event
}

func (r *recordingLogger) Log(e blelog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ev = append(r.ev, e)
}

func (r *recordingLogger) events() []blelog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]blelog.Event(nil), r.ev...)
}
