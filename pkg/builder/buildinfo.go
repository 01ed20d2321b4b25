package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Set with -ldflags "-X github.com/zxhio/pktprobe/pkg/builder.Version=..."
var (
	Version   = "unknown"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

type Info struct {
	Program   string `json:"program"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

func GetInfo() Info {
	return Info{
		Program:   filepath.Base(os.Args[0]),
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s %s) %s", i.Program, i.Version, i.Commit, i.Date, i.GoVersion)
}

func BuildInfo() string { return GetInfo().String() }
