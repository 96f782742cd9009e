package accesslist

import (
	"context"
	"net"

	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/zlog/v2"
	"github.com/yl2chen/cidranger"
)

// AccessList type
type AccessList struct {
	ranger cidranger.Ranger
}

// New return accesslist
func New(cfg *config.Config) *AccessList {
	a := new(AccessList)
	a.ranger = cidranger.NewPCTrieRanger()
	for _, cidr := range cfg.AccessList {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			zlog.Error("Access list parse cidr failed", "error", err.Error())
			continue
		}

		_ = a.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
	}

	return a
}

// Name return middleware name
func (a *AccessList) Name() string { return name }

// ServeDNS implements the Handle interface. Responses from the upstream
// server are never filtered.
func (a *AccessList) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	if ch.Request.Response {
		ch.Next(ctx)
		return
	}

	if !a.Allowed(ch.Writer.RemoteIP()) {
		zlog.Debug("Query dropped by access list", "client", ch.Writer.RemoteAddr())
		// no reply to client
		ch.Cancel()
		return
	}

	ch.Next(ctx)
}

// Allowed reports whether ip falls in one of the configured networks.
func (a *AccessList) Allowed(ip net.IP) bool {
	if ip == nil {
		return false
	}

	allowed, _ := a.ranger.Contains(ip)
	return allowed
}

const name = "accesslist"
