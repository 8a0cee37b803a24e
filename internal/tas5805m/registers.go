package tas5805m

// Register is a TAS5805M register offset on book 0, page 0.
type Register = byte

// Control registers used at runtime.
const (
	// RegDeviceCtrl2 selects the device power state (deep sleep, Hi-Z, play).
	RegDeviceCtrl2 Register = 0x03

	// RegDigitalVolume controls the digital volume of both channels.
	RegDigitalVolume Register = 0x4C

	// RegAnalogGain holds the 5-bit analog gain field; bits 7..5 are reserved.
	RegAnalogGain Register = 0x54
)

// Register table meta offsets from the PPC3 export format.
// These never address a real register.
const (
	// MetaDelay marks a table entry whose value is a delay in milliseconds.
	MetaDelay byte = 0xFE
)

// Device control values written to RegDeviceCtrl2.
const (
	CtrlDeepSleep byte = 0x00
	CtrlHiZ       byte = 0x02
	CtrlPlay      byte = 0x03
)

// Digital volume encoding: 0x00 is +24 dB, each step is -0.5 dB down to
// 0xFE (-103 dB). 0xFF mutes both channels.
const (
	VolumeMax  byte = 0x00
	VolumeZero byte = 0x30
	VolumeMin  byte = 0xFE
	VolumeMute byte = 0xFF
)

// Analog gain encoding: lower five bits, 0 dB down to -15.5 dB in 0.5 dB steps.
const (
	GainMask         byte = 0x1F
	GainReservedMask byte = 0xE0
	MaxGain          byte = 31
)

// dB step sizes for the volume and gain fields.
const (
	volumeStepDB  = 0.5
	volumeTopDB   = 24.0
	gainStepDB    = 0.5
	bookPageReg   = 0x00
	bookSelectReg = 0x7F
)
