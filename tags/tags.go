// Package tags derives the capability tags that select which expectation
// rules apply to a browser, GPU and platform combination.
package tags

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-version"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// PCI vendor ids with canonical tag names.
const (
	VendorNVIDIA uint32 = 0x10DE
	VendorAMD    uint32 = 0x1002
	VendorIntel  uint32 = 0x8086
)

var knownVendors = map[uint32]string{
	VendorNVIDIA: "nvidia",
	VendorAMD:    "amd",
	VendorIntel:  "intel",
}

// Renderer backend markers, checked in order against the aux gl_renderer string.
var rendererBackends = []struct {
	markers []string
	tag     string
}{
	{[]string{"Direct3D11", "D3D11"}, "d3d11"},
	{[]string{"Direct3D9", "D3D9"}, "d3d9"},
	{[]string{"OpenGL ES"}, "opengles"},
	{[]string{"OpenGL"}, "opengl"},
	{[]string{"Vulkan"}, "vulkan"},
	{[]string{"Metal"}, "metal"},
}

// ANGLE reports its device string as "ANGLE (vendor, renderer, version)".
var angleTriple = regexp.MustCompile(`^ANGLE \(([^,]+), (.+), ([^,]*)\)$`)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// TagSet is the set of tags computed for one run.
type TagSet = mapset.Set[string]

// Config carries the non-GPU inputs of tag generation.
type Config struct {
	Platform        string // e.g. "win", "mac", "linux"
	PlatformVersion string // e.g. "win10", "mojave"
	BrowserChannel  string // e.g. "release", "debug", "canary"
	ASAN            bool
	WebGLVersion    string // e.g. "2.0.0", empty when not a WebGL run

	// Capability toggles, usually derived from the browser's extra args.
	SwiftShaderGL bool
	UseVulkan     bool
	SkiaRenderer  bool
}

// GenerateTags computes the tag set for the given system information and
// configuration. Missing or malformed fields drop the tags derived from them.
func GenerateTags(info *types.SystemInfo, cfg Config) TagSet {
	tags := mapset.NewThreadUnsafeSet[string]()
	add := func(tag string) {
		if tag != "" {
			tags.Add(tag)
		}
	}

	add(strings.ToLower(strings.TrimSpace(cfg.Platform)))
	add(strings.ToLower(strings.TrimSpace(cfg.PlatformVersion)))
	add(strings.ToLower(strings.TrimSpace(cfg.BrowserChannel)))

	var gpu *types.GPUInfo
	if info != nil {
		gpu = info.GPU
	}
	if dev, ok := gpu.PrimaryDevice(); ok {
		if vendor := gpuVendor(dev); vendor != "" {
			add(vendor)
			if device := gpuDevice(dev); device != "" {
				add(vendor + "-" + device)
			}
		}
	}

	var aux types.AuxAttributes
	if gpu != nil {
		aux = gpu.AuxAttributes
	}
	add(rendererTag(aux.GLRenderer))
	if aux.PassthroughCmdDecoder {
		add("passthrough")
	} else {
		add("no-passthrough")
	}

	add(capabilityTag("swiftshader-gl", cfg.SwiftShaderGL))
	add(capabilityTag("use-vulkan", cfg.UseVulkan))
	add(capabilityTag("skia-renderer", cfg.SkiaRenderer))
	add(capabilityTag("asan", cfg.ASAN))
	add(webGLVersionTag(cfg.WebGLVersion))

	return tags
}

// Sorted returns the tags in lexical order, for logging and stable output.
func Sorted(tags TagSet) []string {
	if tags == nil {
		return nil
	}
	out := tags.ToSlice()
	sort.Strings(out)
	return out
}

// Lower returns a copy of the tags in lower case, the form expectation rules use.
func Lower(tags TagSet) TagSet {
	out := mapset.NewThreadUnsafeSetWithSize[string](tags.Cardinality())
	tags.Each(func(tag string) bool {
		out.Add(strings.ToLower(tag))
		return false
	})
	return out
}

func gpuVendor(dev types.GPUDevice) string {
	if name, ok := knownVendors[dev.VendorID]; ok {
		return name
	}
	if m := angleTriple.FindStringSubmatch(dev.DeviceString); m != nil {
		return normalize(m[1])
	}
	if fields := strings.Fields(dev.VendorString); len(fields) > 0 {
		return normalize(fields[0])
	}
	return ""
}

func gpuDevice(dev types.GPUDevice) string {
	if dev.DeviceID != 0 {
		return fmt.Sprintf("0x%x", dev.DeviceID)
	}
	if m := angleTriple.FindStringSubmatch(dev.DeviceString); m != nil {
		return hyphenate(m[2])
	}
	return hyphenate(dev.DeviceString)
}

func rendererTag(glRenderer string) string {
	if strings.Contains(glRenderer, "ANGLE") {
		for _, backend := range rendererBackends {
			for _, marker := range backend.markers {
				if strings.Contains(glRenderer, marker) {
					return backend.tag
				}
			}
		}
	}
	return "no-angle"
}

func capabilityTag(name string, enabled bool) string {
	if enabled {
		return name
	}
	return "no-" + name
}

func webGLVersionTag(v string) string {
	if v == "" {
		return ""
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("webgl-version-%d", parsed.Segments()[0])
}

func normalize(s string) string {
	return strings.Trim(nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func hyphenate(s string) string {
	return strings.Join(strings.Fields(s), "-")
}
