package tas5805m

import "math"

// ClampVolume limits v to [0, 1]. NaN maps to 0.
func ClampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// VolumeToRaw maps a normalised volume onto the inverted digital volume
// scale: 0.0 → 0xFE (-103 dB), 1.0 → 0x00 (+24 dB). Input is clamped first.
func VolumeToRaw(v float64) byte {
	v = ClampVolume(v)
	return byte(math.Round(float64(VolumeMin) * (1 - v)))
}

// RawToVolume is the inverse of VolumeToRaw. The mute value maps to 0.
func RawToVolume(raw byte) float64 {
	if raw >= VolumeMin {
		return 0
	}
	return float64(VolumeMin-raw) / float64(VolumeMin)
}

// RawVolumeToDB converts a digital volume register value to dB.
// The mute value returns -Inf.
func RawVolumeToDB(raw byte) float64 {
	if raw == VolumeMute {
		return math.Inf(-1)
	}
	return volumeTopDB - float64(raw)*volumeStepDB
}

// GainToDB converts a 5-bit analog gain level to dB (0 to -15.5).
func GainToDB(level byte) float64 {
	return -float64(level&GainMask) * gainStepDB
}
