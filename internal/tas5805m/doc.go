// Package tas5805m drives a Texas Instruments TAS5805M class-D amplifier
// over a two-wire register bus.
//
// The package has two parts:
//
//   - A register table interpreter (Apply) that walks an ordered list of
//     register writes and meta-delay directives, as exported by TI PPC3.
//   - A device controller (Device) that owns the cached amplifier state and
//     maps volume, mute, analog gain and deep sleep onto register writes.
//
// # Bus Access
//
// The driver never touches hardware directly. It talks to the amplifier
// through the Transport interface (one byte per register), so the same code
// runs against the Linux i2c-dev transport, the simulated register file, or a
// test fake.
//
// # Lifecycle
//
//	dev := tas5805m.New(bus, tas5805m.Options{EnablePin: pin, Logger: log})
//	if err := dev.Init(ctx); err != nil {
//	    // device is failed; stop using it
//	}
//	dev.SetVolume(0.4)
//	dev.SetMuteOn()
//
// # Thread Safety
//
// Device has no internal locking. The caller owns the device and must
// serialise every call (the MQTT bridge does this with a single mutex).
//
// # References
//
//   - TAS5805M datasheet (SLOSE34), registers 0x03, 0x4C, 0x54
//   - TI PPC3 configuration export format (cfg_reg, CFG_META_DELAY)
package tas5805m
