package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// scriptedSurface returns the queued results in order, repeating the last one.
type scriptedSurface struct {
	navigated   []string
	navigateErr error
	results     []string
	evalErr     error
	evaluations int
}

func (s *scriptedSurface) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *scriptedSurface) Evaluate(context.Context, string) (string, error) {
	if s.evalErr != nil {
		return "", s.evalErr
	}
	i := s.evaluations
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.evaluations++
	return s.results[i], nil
}

func TestPageTest(t *testing.T) {
	tests := []struct {
		name      string
		surface   *scriptedSurface
		wantErr   error
		wantAny   bool
		wantEvals int
	}{
		{
			name:      "pass after pending",
			surface:   &scriptedSurface{results: []string{"", "", "PASS"}},
			wantEvals: 3,
		},
		{
			name:      "skip",
			surface:   &scriptedSurface{results: []string{"skip"}},
			wantErr:   types.ErrSkip,
			wantEvals: 1,
		},
		{
			name:      "fail",
			surface:   &scriptedSurface{results: []string{"FAIL"}},
			wantAny:   true,
			wantEvals: 1,
		},
		{
			name:      "message",
			surface:   &scriptedSurface{results: []string{"shader compile error"}},
			wantAny:   true,
			wantEvals: 1,
		},
		{
			name:    "navigate error",
			surface: &scriptedSurface{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
			wantAny: true,
		},
		{
			name:    "evaluate error",
			surface: &scriptedSurface{evalErr: errors.New("execution context destroyed")},
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := PageTest("http://localhost/test.html", "window.result", time.Millisecond)
			err := run(context.Background(), tt.surface)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, types.ErrSkip)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"http://localhost/test.html"}, tt.surface.navigated)
			if tt.wantEvals > 0 {
				assert.Equal(t, tt.wantEvals, tt.surface.evaluations)
			}
		})
	}
}

func TestPageTestTimesOutWhilePending(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	surface := &scriptedSurface{results: []string{""}}
	err := PageTest("about:blank", "window.result", time.Millisecond)(ctx, surface)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, surface.evaluations, 1)
}

func TestSystemInfoFromProto(t *testing.T) {
	res := &proto.SystemInfoGetInfoResult{
		ModelName: "MacBookPro",
		Gpu: &proto.SystemInfoGPUInfo{
			Devices: []*proto.SystemInfoGPUDevice{
				{VendorID: 0x10DE, DeviceID: 0x2184, VendorString: "NVIDIA", DeviceString: "GeForce GTX 1660"},
				nil,
				{VendorID: 0x8086, DeviceID: 0x3E92},
			},
			AuxAttributes: map[string]gson.JSON{
				"passthroughCmdDecoder": gson.New(true),
				"glRenderer":            gson.New("ANGLE (NVIDIA, GeForce GTX 1660, D3D11)"),
			},
		},
	}

	info := systemInfoFromProto(res)
	require.NotNil(t, info)
	assert.Equal(t, "MacBookPro", info.ModelName)
	require.NotNil(t, info.GPU)
	require.Len(t, info.GPU.Devices, 2)
	assert.Equal(t, types.GPUDevice{VendorID: 0x10DE, DeviceID: 0x2184, VendorString: "NVIDIA", DeviceString: "GeForce GTX 1660"}, info.GPU.Devices[0])
	assert.Equal(t, uint32(0x8086), info.GPU.Devices[1].VendorID)
	assert.True(t, info.GPU.AuxAttributes.PassthroughCmdDecoder)
	assert.Equal(t, "ANGLE (NVIDIA, GeForce GTX 1660, D3D11)", info.GPU.AuxAttributes.GLRenderer)
}

func TestSystemInfoFromProtoSnakeCase(t *testing.T) {
	info := systemInfoFromProto(&proto.SystemInfoGetInfoResult{
		Gpu: &proto.SystemInfoGPUInfo{
			AuxAttributes: map[string]gson.JSON{
				"passthrough_cmd_decoder": gson.New(true),
				"gl_renderer":             gson.New("ANGLE (Intel, Mesa Intel(R) UHD Graphics 630, OpenGL 4.6)"),
			},
		},
	})
	require.NotNil(t, info.GPU)
	assert.Empty(t, info.GPU.Devices)
	assert.True(t, info.GPU.AuxAttributes.PassthroughCmdDecoder)
	assert.Contains(t, info.GPU.AuxAttributes.GLRenderer, "OpenGL")
}

func TestSystemInfoFromProtoMissingGPU(t *testing.T) {
	assert.Nil(t, systemInfoFromProto(nil))

	info := systemInfoFromProto(&proto.SystemInfoGetInfoResult{ModelName: "vm"})
	require.NotNil(t, info)
	assert.Nil(t, info.GPU)
}

func TestStaticBinary(t *testing.T) {
	_, err := StaticBinary("").Resolve(context.Background())
	assert.Error(t, err)

	_, err = StaticBinary(filepath.Join(t.TempDir(), "missing")).Resolve(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	got, err := StaticBinary(bin).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestNewBinaryManager(t *testing.T) {
	assert.Equal(t, StaticBinary("/opt/chrome"), NewBinaryManager("/opt/chrome", true))
	assert.Equal(t, SystemBinary{Download: true}, NewBinaryManager("", true))
}

func TestRodControllerBeforeStart(t *testing.T) {
	_, err := NewRodController(RodConfig{})
	require.Error(t, err)

	c, err := NewRodController(RodConfig{Binary: StaticBinary("/opt/chrome")})
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, c.Alive(ctx))
	assert.NoError(t, c.Stop(ctx))

	_, err = c.SystemInfo(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.ErrorIs(t, c.Surface().Navigate(ctx, "about:blank"), ErrNotStarted)
	_, err = c.Surface().Evaluate(ctx, "1")
	assert.ErrorIs(t, err, ErrNotStarted)
}
