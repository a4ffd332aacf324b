package scan

import "fmt"

// IDCode holds the decoded fields of an IEEE 1149.1 device identification
// register.
type IDCode struct {
	Raw              uint32
	Version          uint8
	PartNumber       uint16
	ManufacturerCode uint16
}

// ParseIDCode decodes a raw 32-bit IDCODE into its component fields.
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
	}
}

// Manufacturer returns the JEDEC JEP106 name for the manufacturer code, or an
// empty string for codes outside the curated subset.
func (id IDCode) Manufacturer() string {
	return jep106[id.ManufacturerCode]
}

func (id IDCode) String() string {
	name := id.Manufacturer()
	if name == "" {
		name = fmt.Sprintf("mfg 0x%03X", id.ManufacturerCode)
	}
	return fmt.Sprintf("0x%08X (%s, part 0x%04X, ver %d)",
		id.Raw, name, id.PartNumber, id.Version)
}

// Curated subset of JEP106 manufacturer codes seen on debug-capable silicon.
var jep106 = map[uint16]string{
	0x001: "AMD",
	0x00E: "Freescale (Motorola)",
	0x015: "Philips/NXP",
	0x017: "Texas Instruments",
	0x020: "STMicroelectronics",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x244: "Lattice Semiconductor",
	0x29A: "Infineon",
	0x3B1: "ARM",
	0x489: "SiFive",
	0x612: "Espressif",
}
