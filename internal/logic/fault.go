package logic

// registerUnreadable is what the driver reports when the error register
// read itself failed.
const registerUnreadable = 0xFF

// faultBits lists the error register bits in decode priority order.
var faultBits = []struct {
	bit   uint8
	fault Fault
}{
	{5, FaultHeaterSupply},
	{4, FaultHeaterFault},
	{3, FaultMaxResistance},
	{2, FaultMeasModeInvalid},
	{1, FaultReadRegInvalid},
	{0, FaultMsgInvalid},
}

// DecodeFault maps an error register value to a single category.
// The highest-priority set bit wins.
func DecodeFault(reg uint8) Fault {
	if reg == registerUnreadable {
		return FaultUnreadable
	}
	for _, fb := range faultBits {
		if reg&(1<<fb.bit) != 0 {
			return fb.fault
		}
	}
	return FaultUnknown
}
