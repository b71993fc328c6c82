package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Optional mDNS/DNS-SD advertisement of the bridge's
 *		presence (SPEC_FULL §11), purely observational per
 *		spec.md §6 "Observable outputs".
 *
 * Description:	Directly modeled on the teacher's dns_sd.go, which
 *		announces Dire Wolf's KISS-over-TCP service the same way;
 *		this bridge has no TCP service of its own, so it
 *		advertises its presence and site ID for companion
 *		configuration tools on the LAN instead.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/brutella/dnssd"
)

const dnsSDServiceType = "_quantarbridge._tcp"

func dnsSDDefaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "Quantar Bridge"
	}
	hostname, _, _ = strings.Cut(hostname, ".")
	return "Quantar Bridge on " + hostname
}

// announcePresence publishes a TXT-only DNS-SD record carrying the site
// ID (link status is not advertised); port is nominal (this bridge listens on nothing)
// so a fixed value documents the advertisement's intent rather than a
// real listening socket.
func announcePresence(ctx context.Context, name string, site byte, log *componentLogger) {
	if name == "" {
		name = dnsSDDefaultName()
	}

	cfg := dnssd.Config{
		Name: name,
		Type: dnsSDServiceType,
		Port: 1,
		Text: map[string]string{"site": strconv.Itoa(int(site))},
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		if log != nil {
			log.Error("DNS-SD: failed to create service", "err", err)
		}
		return
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		if log != nil {
			log.Error("DNS-SD: failed to create responder", "err", err)
		}
		return
	}

	if _, err := rp.Add(sv); err != nil {
		if log != nil {
			log.Error("DNS-SD: failed to add service", "err", err)
		}
		return
	}

	if log != nil {
		log.Info("DNS-SD: announcing bridge presence", "name", name)
	}

	go func() {
		if err := rp.Respond(ctx); err != nil && log != nil {
			log.Error("DNS-SD: responder stopped", "err", err)
		}
	}()
}
