package vrpnnet

import (
	"bytes"
	"io"

	"github.com/vrpn-go/vrpn/transport"
)

// fakeStream is an in-memory transport.Stream: writes land in `written`,
// and TryRead drains from `toRead` until it is exhausted, after which it
// reports io.EOF (or transport.ErrWouldBlock if still open).
type fakeStream struct {
	toRead  *bytes.Buffer
	written bytes.Buffer
	eof     bool
}

func newFakeStream(preloaded []byte) *fakeStream {
	return &fakeStream{toRead: bytes.NewBuffer(preloaded)}
}

func (f *fakeStream) TryRead() ([]byte, error) {
	if f.toRead.Len() == 0 {
		if f.eof {
			return nil, io.EOF
		}
		return nil, transport.ErrWouldBlock
	}
	b := f.toRead.Bytes()
	f.toRead.Reset()
	return b, nil
}

func (f *fakeStream) Write(b []byte) (int, error) { return f.written.Write(b) }
func (f *fakeStream) Close() error                 { return nil }

var _ transport.Stream = (*fakeStream)(nil)
