package mapper

import (
	"bufio"
	"fmt"
	"github.com/bitly/go-simplejson"
	"github.com/disgoorg/disgo/gateway"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"golang.org/x/net/context"
	"io"
)

// Message is one dispatch frame: its kind, sequence number and raw payload.
type Message struct {
	Type     gateway.EventType
	Sequence int
	Data     []byte
}

// Transport yields messages until it returns an error. io.EOF ends the
// stream cleanly.
type Transport interface {
	Next(ctx context.Context) (Message, error)
}

type chanTransport <-chan Message

// FromChan reads messages from ch until it is closed.
func FromChan(ch <-chan Message) Transport {
	return chanTransport(ch)
}

func (t chanTransport) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-t:
		if !ok {
			return Message{}, io.EOF
		}
		return msg, nil
	}
}

const maxFrameSize = 64 << 20

// ReaderTransport reads newline delimited gateway frames of the form
// {"t": kind, "s": sequence, "d": payload}. Frames without a kind, such as
// heartbeats, are skipped.
type ReaderTransport struct {
	scanner *bufio.Scanner
	line    int
}

func NewReaderTransport(r io.Reader) *ReaderTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &ReaderTransport{scanner: scanner}
}

func (t *ReaderTransport) Next(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				return Message{}, fmt.Errorf("read frame %d: %w", t.line+1, err)
			}
			return Message{}, io.EOF
		}
		t.line++
		line := t.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := simplejson.NewJson(line)
		if err != nil {
			dlog.Warn("Skipping malformed frame", "line", t.line, "err", err)
			continue
		}
		kind := frame.Get("t").MustString()
		if kind == "" {
			continue
		}
		data, err := frame.Get("d").Encode()
		if err != nil {
			dlog.Warn("Skipping frame with unreadable payload", "line", t.line, "err", err)
			continue
		}
		return Message{
			Type:     gateway.EventType(kind),
			Sequence: frame.Get("s").MustInt(),
			Data:     data,
		}, nil
	}
}
