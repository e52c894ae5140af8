package telegram

import (
	"context"
	"net"
	"net/url"

	"github.com/gotd/td/telegram/dcs"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

// resolverForProxy builds a DC resolver that dials Telegram through the
// given proxy URL. Empty or "direct" keeps plain dialing.
func resolverForProxy(raw string) (dcs.Resolver, error) {
	if raw == "" || raw == "direct" {
		return dcs.Plain(dcs.PlainOptions{}), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid proxy url")
	}

	switch u.Scheme {
	case "socks5":
		if u.Host == "" {
			return nil, errors.New("socks5 host/port required")
		}
		var auth *proxy.Auth
		if u.User != nil {
			auth = &proxy.Auth{User: u.User.Username()}
			if p, ok := u.User.Password(); ok {
				auth.Password = p
			}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build socks5 dialer")
		}
		dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
			type d interface {
				DialContext(context.Context, string, string) (net.Conn, error)
			}
			if dc, ok := dialer.(d); ok {
				return dc.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		return dcs.Plain(dcs.PlainOptions{Dial: dial}), nil
	default:
		return nil, errors.Errorf("unsupported proxy type: %s", u.Scheme)
	}
}
