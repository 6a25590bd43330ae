package tags

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

func gpuInfo(dev types.GPUDevice, aux types.AuxAttributes) *types.SystemInfo {
	return &types.SystemInfo{
		GPU: &types.GPUInfo{
			Devices:       []types.GPUDevice{dev},
			AuxAttributes: aux,
		},
	}
}

func TestGenerateTagsKnownVendor(t *testing.T) {
	info := gpuInfo(
		types.GPUDevice{VendorID: VendorNVIDIA, DeviceID: 0x1cb3},
		types.AuxAttributes{GLRenderer: "ANGLE Direct3D9"},
	)
	got := GenerateTags(info, Config{Platform: "win", PlatformVersion: "win10", BrowserChannel: "release"})

	want := mapset.NewThreadUnsafeSet(
		"win", "win10", "release", "nvidia", "nvidia-0x1cb3", "d3d9", "no-passthrough",
		"no-swiftshader-gl", "no-use-vulkan", "no-skia-renderer", "no-asan",
	)
	assert.True(t, want.Equal(got), "got %v", Sorted(got))
}

func TestGenerateTagsVendorString(t *testing.T) {
	info := gpuInfo(
		types.GPUDevice{VendorID: 0xffff, VendorString: "Imagination Technologies", DeviceString: "PowerVR SGX 554"},
		types.AuxAttributes{PassthroughCmdDecoder: true, GLRenderer: "ANGLE OpenGL ES"},
	)
	got := GenerateTags(info, Config{Platform: "mac", PlatformVersion: "mojave", BrowserChannel: "release"})

	want := mapset.NewThreadUnsafeSet(
		"mac", "mojave", "release", "imagination", "imagination-PowerVR-SGX-554", "opengles", "passthrough",
		"no-swiftshader-gl", "no-use-vulkan", "no-skia-renderer", "no-asan",
	)
	assert.True(t, want.Equal(got), "got %v", Sorted(got))
	assert.False(t, got.Contains("no-passthrough"))
}

func TestGenerateTagsANGLEDeviceString(t *testing.T) {
	info := gpuInfo(
		types.GPUDevice{
			VendorID:     0xffff,
			VendorString: "illegal vendor string",
			DeviceString: "ANGLE (Imagination, Triangle Monster 3000, 1.0)",
		},
		types.AuxAttributes{},
	)
	got := GenerateTags(info, Config{Platform: "mac", PlatformVersion: "mojave", BrowserChannel: "release"})

	want := mapset.NewThreadUnsafeSet(
		"mac", "mojave", "release", "imagination", "imagination-Triangle-Monster-3000", "no-angle",
		"no-passthrough", "no-swiftshader-gl", "no-use-vulkan", "no-skia-renderer", "no-asan",
	)
	assert.True(t, want.Equal(got), "got %v", Sorted(got))
}

func TestGenerateTagsDeviceIDOverridesString(t *testing.T) {
	info := gpuInfo(
		types.GPUDevice{VendorID: VendorIntel, DeviceID: 0x3e92, DeviceString: "Intel UHD 630"},
		types.AuxAttributes{GLRenderer: "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
	)
	got := GenerateTags(info, Config{Platform: "win"})
	assert.True(t, got.Contains("intel", "intel-0x3e92", "d3d11"), "got %v", Sorted(got))
}

func TestGenerateTagsRealANGLEString(t *testing.T) {
	info := gpuInfo(
		types.GPUDevice{DeviceString: "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 (0x00002184) Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		types.AuxAttributes{},
	)
	got := GenerateTags(info, Config{})
	assert.True(t, got.Contains("nvidia", "nvidia-NVIDIA-GeForce-GTX-1660-(0x00002184)-Direct3D11-vs_5_0-ps_5_0"), "got %v", Sorted(got))
}

func TestGenerateTagsDegradesGracefully(t *testing.T) {
	t.Run("unknown vendor and empty strings", func(t *testing.T) {
		info := gpuInfo(types.GPUDevice{VendorID: 0x1234}, types.AuxAttributes{})
		got := GenerateTags(info, Config{Platform: "linux", BrowserChannel: "release"})
		assert.True(t, got.Contains("linux", "release"))
		for _, tag := range got.ToSlice() {
			assert.NotContains(t, []string{"nvidia", "amd", "intel", "unknown"}, tag)
		}
		assert.Equal(t, 8, got.Cardinality(), "got %v", Sorted(got))
	})

	t.Run("malformed triple falls back to literal device string", func(t *testing.T) {
		info := gpuInfo(types.GPUDevice{VendorString: "Acme GPU Inc", DeviceString: "ANGLE (Acme, broken"}, types.AuxAttributes{})
		got := GenerateTags(info, Config{})
		assert.True(t, got.Contains("acme", "acme-ANGLE-(Acme,-broken", "no-angle"), "got %v", Sorted(got))
	})

	t.Run("nil system info", func(t *testing.T) {
		got := GenerateTags(nil, Config{Platform: "Linux"})
		assert.True(t, got.Contains("linux", "no-angle", "no-passthrough"))
	})

	t.Run("no devices", func(t *testing.T) {
		got := GenerateTags(&types.SystemInfo{GPU: &types.GPUInfo{}}, Config{})
		assert.True(t, got.Contains("no-passthrough"))
	})

	t.Run("unparsable webgl version", func(t *testing.T) {
		got := GenerateTags(nil, Config{WebGLVersion: "latest"})
		for _, tag := range got.ToSlice() {
			assert.NotContains(t, tag, "webgl-version")
		}
	})
}

func TestGenerateTagsConfigFlags(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "asan", cfg: Config{ASAN: true}, want: []string{"asan"}},
		{name: "no asan", cfg: Config{}, want: []string{"no-asan"}},
		{name: "webgl 1", cfg: Config{WebGLVersion: "1.0.0"}, want: []string{"webgl-version-1"}},
		{name: "webgl 2", cfg: Config{WebGLVersion: "2.0.0"}, want: []string{"webgl-version-2"}},
		{
			name: "capabilities enabled",
			cfg:  Config{SwiftShaderGL: true, UseVulkan: true, SkiaRenderer: true},
			want: []string{"swiftshader-gl", "use-vulkan", "skia-renderer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateTags(nil, tt.cfg)
			assert.True(t, got.Contains(tt.want...), "got %v", Sorted(got))
		})
	}
}

func TestApplyBrowserArgs(t *testing.T) {
	var cfg Config
	cfg.ApplyBrowserArgs([]string{
		"--use-gl=swiftshader",
		"--use-vulkan=native",
		"--enable-features=Foo,UseSkiaRenderer:mode/full",
		"--ignore-gpu-blocklist",
	})
	assert.True(t, cfg.SwiftShaderGL)
	assert.True(t, cfg.UseVulkan)
	assert.True(t, cfg.SkiaRenderer)

	cfg.ApplyBrowserArgs([]string{"--disable-features=UseSkiaRenderer"})
	assert.False(t, cfg.SkiaRenderer)

	var angle Config
	angle.ApplyBrowserArgs([]string{"--use-angle=swiftshader"})
	assert.True(t, angle.SwiftShaderGL)
}

func TestSorted(t *testing.T) {
	assert.Nil(t, Sorted(nil))
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(mapset.NewThreadUnsafeSet("c", "a", "b")))
}

// Tag generation must never panic, whatever the snapshot contains.
func TestGenerateTagsNeverPanics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dev := types.GPUDevice{
			VendorID:     rapid.SampledFrom([]uint32{0, VendorNVIDIA, VendorAMD, VendorIntel, 0x5143}).Draw(rt, "vendor"),
			DeviceID:     rapid.Uint32().Draw(rt, "device"),
			VendorString: rapid.String().Draw(rt, "vendorString"),
			DeviceString: rapid.String().Draw(rt, "deviceString"),
		}
		aux := types.AuxAttributes{
			PassthroughCmdDecoder: rapid.Bool().Draw(rt, "passthrough"),
			GLRenderer:            rapid.String().Draw(rt, "renderer"),
		}
		got := GenerateTags(gpuInfo(dev, aux), Config{Platform: "linux"})
		require.True(rt, got.Contains("linux"))
		require.True(rt, got.Contains("passthrough") || got.Contains("no-passthrough"))
		require.False(rt, got.Contains(""))
	})
}

func TestLower(t *testing.T) {
	got := Lower(mapset.NewThreadUnsafeSet("win", "imagination-PowerVR-SGX-554"))
	assert.True(t, got.Equal(mapset.NewThreadUnsafeSet("win", "imagination-powervr-sgx-554")))
}
