package netutil

import (
	"os"
	"path"
)

var sysNetPath = "/sys/class/net"

// IsPhyNic reports whether nic is backed by a device, i.e. it is not a
// virtual interface such as veth, bridge or loopback.
func IsPhyNic(nic string) bool {
	_, err := os.Stat(path.Join(sysNetPath, nic, "device"))
	return err == nil
}
