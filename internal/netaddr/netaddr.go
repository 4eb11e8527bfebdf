// Package netaddr lists the host's IPv4 addresses for the usage banner.
package netaddr

import (
	"fmt"
	"net"
)

// Source supplies interfaces and their addresses. The zero value is not usable;
// use System or build one in tests.
type Source struct {
	Interfaces func() ([]net.Interface, error)
	Addrs      func(net.Interface) ([]net.Addr, error)
}

// System reads interfaces from the operating system.
func System() Source {
	return Source{
		Interfaces: net.Interfaces,
		Addrs: func(iface net.Interface) ([]net.Addr, error) {
			return iface.Addrs()
		},
	}
}

// IPv4 returns every IPv4 address on the host in interface order. Loopback and
// link-local addresses are included.
func IPv4() ([]string, error) {
	return System().IPv4()
}

// IPv4 returns every IPv4 address reported by the source in interface order.
// An interface whose addresses cannot be read is skipped.
func (s Source) IPv4() ([]string, error) {
	ifaces, err := s.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}
	var out []string
	for _, iface := range ifaces {
		addrs, err := s.Addrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ip := ipv4Of(addr); ip != nil {
				out = append(out, ip.String())
			}
		}
	}
	return out, nil
}

func ipv4Of(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return nil
	}
	return ip.To4()
}
