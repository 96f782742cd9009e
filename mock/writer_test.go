package mock

import (
	"errors"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Writer(t *testing.T) {
	mw := NewWriter("127.0.0.1:5300")

	assert.False(t, mw.Written())
	_, err := mw.Msg()
	assert.Error(t, err)

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeA)
	data, err := m.Pack()
	require.NoError(t, err)

	n, err := mw.WriteTo(data, mw.RemoteAddr())
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, mw.Written())

	msg, err := mw.Msg()
	require.NoError(t, err)
	assert.Equal(t, "example.com.", msg.Question[0].Name)

	d, ok := mw.Last()
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:5300", d.Addr.String())
	assert.Equal(t, "127.0.0.1:53", mw.LocalAddr().String())

	// the recorded datagram is a copy
	data[0] ^= 0xff
	d, _ = mw.Last()
	assert.NotEqual(t, data[0], d.Data[0])

	mw.Short = true
	n, err = mw.WriteTo(data, mw.RemoteAddr())
	require.NoError(t, err)
	assert.Equal(t, len(data)-1, n)
	assert.Len(t, mw.Sent(), 2)

	mw.Reset()
	assert.False(t, mw.Written())

	mw.Err = errors.New("network down")
	_, err = mw.WriteTo(data, mw.RemoteAddr())
	assert.Error(t, err)
	assert.Empty(t, mw.Sent())
}
