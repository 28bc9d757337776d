package audio

// Device is a host audio device as shown by the device picker.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// Kind reports whether the device captures, plays back, or both.
func (d Device) Kind() string {
	return deviceKind(d.MaxInputChannels, d.MaxOutputChannels)
}

// CanCapture reports whether the device offers at least one input channel.
func (d Device) CanCapture() bool {
	return d.MaxInputChannels > 0
}

// HostDevices returns all available audio devices. PortAudio must already be
// initialized.
func HostDevices() ([]Device, error) {
	paDeviceInfos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(paDeviceInfos))
	for i, info := range paDeviceInfos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}

	return devices, nil
}
