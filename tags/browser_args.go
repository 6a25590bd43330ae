package tags

import "strings"

// ApplyBrowserArgs flips the capability toggles enabled by the browser's
// command line. Later arguments win.
func (c *Config) ApplyBrowserArgs(args []string) {
	for _, arg := range args {
		name, value, _ := strings.Cut(arg, "=")
		switch name {
		case "--use-gl", "--use-angle":
			if value == "swiftshader" || value == "swiftshader-webgl" {
				c.SwiftShaderGL = true
			}
		case "--use-vulkan":
			c.UseVulkan = true
		case "--enable-features":
			if hasFeature(value, "UseSkiaRenderer") {
				c.SkiaRenderer = true
			}
		case "--disable-features":
			if hasFeature(value, "UseSkiaRenderer") {
				c.SkiaRenderer = false
			}
		}
	}
}

func hasFeature(list, feature string) bool {
	for _, f := range strings.Split(list, ",") {
		// Field trial params look like Feature:param/value
		f, _, _ = strings.Cut(f, ":")
		if strings.TrimSpace(f) == feature {
			return true
		}
	}
	return false
}
