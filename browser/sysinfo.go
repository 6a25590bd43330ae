package browser

import (
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// Chromium has reported the auxiliary GPU attributes in both spellings.
var (
	passthroughKeys = []string{"passthroughCmdDecoder", "passthrough_cmd_decoder"}
	glRendererKeys  = []string{"glRenderer", "gl_renderer"}
)

func systemInfoFromProto(res *proto.SystemInfoGetInfoResult) *types.SystemInfo {
	if res == nil {
		return nil
	}
	info := &types.SystemInfo{ModelName: res.ModelName}
	if res.Gpu == nil {
		return info
	}

	gpu := &types.GPUInfo{}
	for _, d := range res.Gpu.Devices {
		if d == nil {
			continue
		}
		gpu.Devices = append(gpu.Devices, types.GPUDevice{
			VendorID:     uint32(d.VendorID),
			DeviceID:     uint32(d.DeviceID),
			VendorString: d.VendorString,
			DeviceString: d.DeviceString,
		})
	}
	if v, ok := lookupAux(res.Gpu.AuxAttributes, passthroughKeys); ok {
		gpu.AuxAttributes.PassthroughCmdDecoder = v.Bool()
	}
	if v, ok := lookupAux(res.Gpu.AuxAttributes, glRendererKeys); ok && !v.Nil() {
		gpu.AuxAttributes.GLRenderer = v.Str()
	}
	info.GPU = gpu
	return info
}

func lookupAux(attrs map[string]gson.JSON, keys []string) (gson.JSON, bool) {
	for _, key := range keys {
		if v, ok := attrs[key]; ok {
			return v, true
		}
	}
	return gson.JSON{}, false
}
