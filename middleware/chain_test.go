package middleware

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery(id uint16) (*dnsmsg.Message, []byte) {
	m := &dnsmsg.Message{
		Header: dnsmsg.Header{ID: id, RecursionDesired: true},
		Question: []dnsmsg.Question{
			{Name: "test.com.", Qtype: dnsmsg.TypeA, Qclass: dnsmsg.ClassIN},
		},
	}

	raw, err := m.Encode()
	if err != nil {
		panic(err)
	}

	return m, raw
}

func Test_Chain(t *testing.T) {
	w := mock.NewWriter("127.0.0.1:5300")
	d := &dummy{}
	ch := NewChain([]Handler{d, d})
	req, raw := testQuery(7)
	ch.Reset(w, w.RemoteAddr(), req, raw)

	ch.Next(context.Background())
	assert.Equal(t, 2, d.calls)
	assert.Equal(t, 0, ch.count)

	ch.Next(context.Background())
	assert.Equal(t, 2, d.calls)

	err := ch.Writer.WriteMsg(req)
	require.NoError(t, err)

	assert.True(t, ch.Writer.Written())
	assert.Equal(t, len(raw), ch.Writer.Size())
	assert.Equal(t, req, ch.Writer.Msg())
	assert.Equal(t, w.RemoteAddr(), ch.Writer.Dest())
	assert.Equal(t, "127.0.0.1", ch.Writer.RemoteIP().String())
	assert.Equal(t, "127.0.0.1:53", ch.Writer.LocalAddr().String())

	err = ch.Writer.WriteMsg(req)
	assert.Equal(t, errAlreadyWritten, err)
	assert.Len(t, w.Sent(), 1)

	ch.Reset(w, w.RemoteAddr(), req, raw)
	assert.False(t, ch.Writer.Written())
	assert.Nil(t, ch.Writer.Msg())

	ch.Cancel()
	ch.Next(context.Background())
	assert.Equal(t, 2, d.calls)
}

func Test_Relay(t *testing.T) {
	w := mock.NewWriter("127.0.0.1:5300")
	ch := NewChain(nil)
	req, raw := testQuery(0x1111)
	ch.Reset(w, w.RemoteAddr(), req, raw)

	upstream := &net.UDPAddr{IP: net.IPv4(192, 0, 2, 53), Port: 53}
	err := ch.Writer.Relay(req, raw, 0x2222, upstream)
	require.NoError(t, err)

	sent, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, upstream, sent.Addr)
	assert.Equal(t, []byte{0x22, 0x22}, sent.Data[:2])
	assert.Equal(t, raw[2:], sent.Data[2:])

	// caller buffers and the decoded request are left alone
	assert.Equal(t, []byte{0x11, 0x11}, raw[:2])
	assert.Equal(t, uint16(0x1111), req.ID)
	assert.Equal(t, uint16(0x2222), ch.Writer.Msg().ID)

	err = ch.Writer.Relay(req, raw, 0x3333, upstream)
	assert.Equal(t, errAlreadyWritten, err)

	ch.Reset(w, w.RemoteAddr(), req, raw)
	err = ch.Writer.Relay(req, raw[:1], 1, upstream)
	assert.ErrorIs(t, err, dnsmsg.ErrTruncatedData)
}

func Test_ShortWrite(t *testing.T) {
	w := mock.NewWriter("127.0.0.1:5300")
	w.Short = true

	ch := NewChain(nil)
	req, raw := testQuery(1)
	ch.Reset(w, w.RemoteAddr(), req, raw)

	err := ch.Writer.WriteMsg(req)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.True(t, ch.Writer.Written())

	w = mock.NewWriter("127.0.0.1:5300")
	w.Err = errors.New("network down")
	ch.Reset(w, w.RemoteAddr(), req, raw)

	err = ch.Writer.WriteMsg(req)
	assert.Equal(t, w.Err, err)
}

func Test_WriteMsgEncodeError(t *testing.T) {
	w := mock.NewWriter("127.0.0.1:5300")
	ch := NewChain(nil)
	req, raw := testQuery(1)
	ch.Reset(w, w.RemoteAddr(), req, raw)

	bad := &dnsmsg.Message{Question: []dnsmsg.Question{{Name: "a..b."}}}
	err := ch.Writer.WriteMsg(bad)
	assert.Error(t, err)
	assert.False(t, ch.Writer.Written())
	assert.Empty(t, w.Sent())
}
