package util

import "fmt"

// Binary size units
const (
	KiB = 1024.0
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
	PiB = 1024 * TiB
	EiB = 1024 * PiB
)

// MojoPerXCH is the number of mojo in one XCH
const MojoPerXCH = 1e12

// TiBToBytes converts a capacity in TiB to bytes
func TiBToBytes(tib float64) float64 {
	return tib * TiB
}

// BytesToTiB converts bytes to TiB
func BytesToTiB(bytes float64) float64 {
	return bytes / TiB
}

// MojoToXCH converts mojo to XCH
func MojoToXCH(mojo float64) float64 {
	return mojo / MojoPerXCH
}

// FormatBytes renders a byte count with the largest binary unit that fits,
// right-aligned to eight characters.
func FormatBytes(bytes float64) string {
	switch {
	case bytes >= EiB:
		return fmt.Sprintf("%8.2f EiB", bytes/EiB)
	case bytes >= PiB:
		return fmt.Sprintf("%8.2f PiB", bytes/PiB)
	case bytes >= TiB:
		return fmt.Sprintf("%8.2f TiB", bytes/TiB)
	case bytes >= GiB:
		return fmt.Sprintf("%8.2f GiB", bytes/GiB)
	case bytes >= MiB:
		return fmt.Sprintf("%8.2f MiB", bytes/MiB)
	case bytes >= KiB:
		return fmt.Sprintf("%8.2f KiB", bytes/KiB)
	default:
		return fmt.Sprintf("%8.0f B", bytes)
	}
}
