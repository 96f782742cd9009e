package accesslog

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwarder struct{}

func (f *forwarder) Name() string { return "forwarder" }
func (f *forwarder) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	upstream := &net.UDPAddr{IP: net.IPv4(192, 0, 2, 53), Port: 53}
	_ = ch.Writer.Relay(ch.Request, ch.Raw, 9, upstream)
}

func serve(t *testing.T, a *AccessLog) {
	req := &dnsmsg.Message{
		Header:   dnsmsg.Header{ID: 1},
		Question: []dnsmsg.Question{{Name: "Test.COM.", Qtype: dnsmsg.TypeA, Qclass: dnsmsg.ClassIN}},
	}
	raw, err := req.Encode()
	require.NoError(t, err)

	mw := mock.NewWriter("10.0.0.1:5300")
	ch := middleware.NewChain([]middleware.Handler{a, &forwarder{}})
	ch.Reset(mw, mw.RemoteAddr(), req, raw)
	ch.Next(context.Background())
}

func Test_accesslog(t *testing.T) {
	cfg := config.New("0.0.0")
	cfg.AccessLog = filepath.Join(t.TempDir(), "access_test.log")

	a := New(cfg)
	defer a.Close()

	assert.Equal(t, "accesslog", a.Name())
	require.NotNil(t, a.logFile)

	serve(t, a)

	data, err := os.ReadFile(cfg.AccessLog)
	require.NoError(t, err)

	line := string(data)
	assert.True(t, strings.HasPrefix(line, "10.0.0.1 - ["), line)
	assert.Contains(t, line, `"test.com. IN A" forwarded`)
	assert.True(t, strings.HasSuffix(line, " 192.0.2.53:53\n"), line)

	assert.NoError(t, a.Close())
	assert.Nil(t, a.logFile)
	assert.NoError(t, a.Close())
}

func Test_accesslogReopen(t *testing.T) {
	dir := t.TempDir()

	cfg := config.New("0.0.0")
	cfg.AccessLog = filepath.Join(dir, "access.log")

	a := New(cfg)
	defer a.Close()

	serve(t, a)
	require.NoError(t, os.Rename(cfg.AccessLog, filepath.Join(dir, "access.log.1")))

	assert.Eventually(t, func() bool {
		serve(t, a)
		data, err := os.ReadFile(cfg.AccessLog)
		return err == nil && len(data) > 0
	}, 5*time.Second, 20*time.Millisecond)

	rotated, err := os.ReadFile(filepath.Join(dir, "access.log.1"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
}

func Test_accesslogDisabled(t *testing.T) {
	a := New(config.New("0.0.0"))
	assert.Nil(t, a.logFile)

	assert.NotPanics(t, func() { serve(t, a) })
	assert.NoError(t, a.Close())
}
