package bridge

// reasonCode is the fixed NAK reason taxonomy (spec.md §7).
type reasonCode byte

const (
	reasonOK                   reasonCode = 0
	reasonNAK                  reasonCode = 1
	reasonIllegalLength        reasonCode = 2
	reasonInvalidRequest       reasonCode = 4
	reasonRingBuffFull         reasonCode = 8
	reasonInvalidFDMAPreamble  reasonCode = 10
	reasonInvalidMode          reasonCode = 11
	reasonInvalidP25CorrCount  reasonCode = 16
	reasonNoInternalFlash      reasonCode = 20
	reasonFailedEraseFlash     reasonCode = 21
	reasonFailedWriteFlash     reasonCode = 22
	reasonFlashWriteTooBig     reasonCode = 23
	reasonHSNoDualMode         reasonCode = 32
	reasonDMRDisabled          reasonCode = 63
	reasonP25Disabled          reasonCode = 64
	reasonNXDNDisabled         reasonCode = 65
)
