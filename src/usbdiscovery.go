package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	USB-CDC device discovery (C6): resolve a /dev/ttyACM*
 *		node by vendor/product ID so the operator can configure
 *		"auto" instead of a fixed device path (SPEC_FULL §10.2).
 *
 * Description:	Uses jochenvg/go-udev to enumerate tty-subsystem
 *		devices and match on USB vendor/product ID, the same
 *		udev-enumeration idiom the pack's go-udev dependency is
 *		meant for (no equivalent exists in the teacher, which
 *		never does device discovery - this is wired in purely to
 *		give go-udev a home per SPEC_FULL §11).
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// findUSBCDCDevice returns the /dev/ttyACM* (or ttyUSB*) path of the
// first tty device whose USB vendor/product ID matches, or an error if
// none is found.
func findUSBCDCDevice(vendorID, productID string) (string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("tty"); err != nil {
		return "", fmt.Errorf("match tty subsystem: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return "", fmt.Errorf("enumerate tty devices: %w", err)
	}

	for _, d := range devices {
		usbDevice := d.ParentWithSubsystemDevtype("usb", "usb_device")
		if usbDevice == nil {
			continue
		}
		if usbDevice.PropertyValue("ID_VENDOR_ID") == vendorID && usbDevice.PropertyValue("ID_MODEL_ID") == productID {
			if path := d.Devnode(); path != "" {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no USB-CDC device found for vendor=%s product=%s", vendorID, productID)
}
