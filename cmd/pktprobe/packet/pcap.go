package packet

import (
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

const snapLen = 65536

// writePcap writes samples as an Ethernet capture, one millisecond apart.
func writePcap(w io.Writer, samples []Sample, start time.Time) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return errors.Wrap(err, "pcapgo.WriteFileHeader")
	}
	for k, s := range samples {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(k) * time.Millisecond),
			CaptureLength: len(s.Data),
			Length:        len(s.Data),
		}
		if err := pw.WritePacket(ci, s.Data); err != nil {
			return errors.Wrapf(err, "pcapgo.WritePacket(%s)", s.Name)
		}
	}
	return nil
}

// readPcap calls fn for every packet of an Ethernet capture.
func readPcap(r io.Reader, fn func(no int, data []byte) error) error {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "pcapgo.NewReader")
	}
	if pr.LinkType() != layers.LinkTypeEthernet {
		return errors.Errorf("unsupported link type %s", pr.LinkType())
	}

	for no := 1; ; no++ {
		data, _, err := pr.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "pcapgo.ReadPacketData")
		}
		if err := fn(no, data); err != nil {
			return err
		}
	}
}
