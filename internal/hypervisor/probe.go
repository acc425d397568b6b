package hypervisor

import (
	"net/url"

	"github.com/digitalocean/go-libvirt"
)

// Probe performs a lightweight libvirtd connectivity check using the native
// libvirt RPC protocol instead of shelling out, so cmd/vmdash can report
// "hypervisor unreachable" at startup before paying the cost of a
// full domstats parse-and-fail cycle. The adapter's data-plane operations
// remain CLI-text-based (§4.1/§6's explicit grammar is implemented in
// parser.go) — this is purely a cheap up-front health check.
func Probe(uri string) error {
	if uri == "" {
		uri = string(libvirt.QEMUSystem)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	l, err := libvirt.ConnectToURI(u)
	if err != nil {
		return err
	}
	return l.Disconnect()
}
