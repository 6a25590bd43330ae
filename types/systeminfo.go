package types

// GPUDevice describes one GPU as reported by the browser.
type GPUDevice struct {
	VendorID     uint32 `json:"vendor_id"`
	DeviceID     uint32 `json:"device_id"`
	VendorString string `json:"vendor_string"`
	DeviceString string `json:"device_string"`
}

// AuxAttributes holds the auxiliary GPU attributes used for tagging.
type AuxAttributes struct {
	PassthroughCmdDecoder bool   `json:"passthrough_cmd_decoder"`
	GLRenderer            string `json:"gl_renderer,omitempty"`
}

// GPUInfo is the GPU part of a system information snapshot. Devices[0] is
// the active GPU.
type GPUInfo struct {
	Devices       []GPUDevice   `json:"devices"`
	AuxAttributes AuxAttributes `json:"aux_attributes"`
}

// PrimaryDevice returns the active GPU, if any.
func (g *GPUInfo) PrimaryDevice() (GPUDevice, bool) {
	if g == nil || len(g.Devices) == 0 {
		return GPUDevice{}, false
	}
	return g.Devices[0], true
}

// SystemInfo is a snapshot of the browser's view of the system.
type SystemInfo struct {
	GPU       *GPUInfo `json:"gpu,omitempty"`
	ModelName string   `json:"model_name,omitempty"`
}
