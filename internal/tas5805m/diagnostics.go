package tas5805m

// Status is a diagnostic snapshot of the device.
type Status struct {
	RegistersConfigured int       `json:"registers_configured"`
	Initialised         bool      `json:"initialised"`
	Failed              bool      `json:"failed"`
	Volume              float64   `json:"volume"`
	DigitalVolumeRaw    byte      `json:"digital_volume_raw"`
	AnalogGain          byte      `json:"analog_gain"`
	AnalogGainRaw       byte      `json:"analog_gain_raw"`
	Muted               bool      `json:"muted"`
	DeepSleep           bool      `json:"deep_sleep"`
	LastErrorKind       ErrorKind `json:"last_error_kind"`
	LastError           string    `json:"last_error,omitempty"`
	LastBusCode         BusCode   `json:"last_bus_code"`
}

// Status returns the current diagnostic snapshot.
func (d *Device) Status() Status {
	s := Status{
		RegistersConfigured: d.registersConfigured,
		Initialised:         d.initialised,
		Failed:              d.failed,
		Volume:              d.volume,
		DigitalVolumeRaw:    d.digitalVolumeRaw,
		AnalogGain:          d.analogGainRaw & GainMask,
		AnalogGainRaw:       d.analogGainRaw,
		Muted:               d.muted,
		DeepSleep:           d.deepSleep,
		LastErrorKind:       d.lastErrorKind,
		LastBusCode:         busCodeOf(d.lastTransportErr),
	}
	if d.lastTransportErr != nil {
		s.LastError = d.lastTransportErr.Error()
	}
	return s
}

// LogConfig writes the device diagnostics to logger.
// Failures are reported at error level with the last bus code.
func LogConfig(logger Logger, s Status) {
	if logger == nil {
		return
	}

	switch s.LastErrorKind {
	case ErrorConfigurationFailed:
		logger.Error("tas5805m: write configuration failure",
			"registers_configured", s.RegistersConfigured,
			"bus_code", s.LastBusCode.String(),
			"error", s.LastError)
	case ErrorWriteRegisterFailed:
		logger.Error("tas5805m: write register failure",
			"bus_code", s.LastBusCode.String(),
			"error", s.LastError)
	default:
		logger.Info("tas5805m: setup successful",
			"registers_configured", s.RegistersConfigured,
			"digital_volume", s.DigitalVolumeRaw,
			"digital_volume_db", RawVolumeToDB(s.DigitalVolumeRaw),
			"analog_gain", s.AnalogGain,
			"analog_gain_db", GainToDB(s.AnalogGain),
			"muted", s.Muted,
			"deep_sleep", s.DeepSleep)
	}
}
