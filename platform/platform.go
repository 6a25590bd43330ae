// Package platform identifies the host operating system for tag generation.
package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/shirou/gopsutil/v4/host"
)

const (
	Windows = "win"
	Mac     = "mac"
	Linux   = "linux"
)

// First Windows build that reports itself as Windows 11.
const win11Build = 22000

var macCodenames = map[int]string{
	11: "bigsur",
	12: "monterey",
	13: "ventura",
	14: "sonoma",
	15: "sequoia",
	26: "tahoe",
}

var legacyMacCodenames = map[int]string{
	13: "highsierra",
	14: "mojave",
	15: "catalina",
}

// Info names the host the way expectation files tag it.
type Info struct {
	Platform string // win, mac, linux or the raw OS name
	Version  string // win10, sonoma, ubuntu, ... empty when unknown
	Arch     string
}

// Detect reads the host information. Overrides win over detected values.
func Detect(ctx context.Context, platformOverride, versionOverride string) (Info, error) {
	var info Info
	if platformOverride == "" || versionOverride == "" {
		stat, err := host.InfoWithContext(ctx)
		if err != nil {
			return Info{}, fmt.Errorf("reading host info: %w", err)
		}
		info = FromHost(stat)
	}
	if platformOverride != "" {
		info.Platform = strings.ToLower(platformOverride)
	}
	if versionOverride != "" {
		info.Version = strings.ToLower(versionOverride)
	}
	return info, nil
}

// FromHost maps gopsutil host information to platform and version tags.
func FromHost(stat *host.InfoStat) Info {
	if stat == nil {
		return Info{}
	}
	info := Info{Arch: stat.KernelArch}
	switch strings.ToLower(stat.OS) {
	case "windows":
		info.Platform = Windows
		info.Version = windowsVersion(stat.PlatformVersion)
	case "darwin":
		info.Platform = Mac
		info.Version = macVersion(stat.PlatformVersion)
	case "linux":
		info.Platform = Linux
		info.Version = strings.ToLower(stat.Platform)
	default:
		info.Platform = strings.ToLower(stat.OS)
	}
	return info
}

// windowsVersion accepts versions such as "10.0.22631.3447 Build 22631.3447".
func windowsVersion(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return ""
	}
	seg := v.Segments()
	switch {
	case seg[0] == 10 && len(seg) > 2 && seg[2] >= win11Build:
		return "win11"
	case seg[0] == 10:
		return "win10"
	case seg[0] == 6 && seg[1] == 1:
		return "win7"
	case seg[0] == 6 && seg[1] >= 2:
		return "win8"
	}
	return ""
}

func macVersion(raw string) string {
	v, err := version.NewVersion(raw)
	if err != nil {
		return ""
	}
	seg := v.Segments()
	if seg[0] == 10 {
		return legacyMacCodenames[seg[1]]
	}
	return macCodenames[seg[0]]
}
