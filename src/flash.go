package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Configuration-page persistence (C4 support) and device UID
 *		derivation, replacing the firmware's STM32_CNF_PAGE flash
 *		sector and STM32_UUID register read.
 *
 * Description:	util.c's getUid() copies 12 bytes straight out of the
 *		STM32's factory-programmed UID register; there is no
 *		equivalent register on the host this bridge runs on, so the
 *		UID is instead derived deterministically from the
 *		configured hardware string (it is not stored on disk) -
 *		config.h's STM32_CNF_PAGE (a single fixed-address page) is
 *		ported to a single flat file rather than a real flash
 *		erase/write cycle (SPEC_FULL §12).
 *
 *---------------------------------------------------------------*/

import (
	"crypto/sha256"
	"fmt"
	"os"
)

// flashPageSize mirrors the STM32F103's 1 KiB page granularity
// (STM32_CNF_PAGE_24 is a single page at that size).
const flashPageSize = 1024

// filePage is the file-backed flashStore implementation: CMD_FLASH_READ/
// CMD_FLASH_WRITE operate on it exactly as the firmware's commands
// operated on STM32_CNF_PAGE.
type filePage struct {
	path string
	log  *componentLogger
}

func newFilePage(path string, log *componentLogger) *filePage {
	return &filePage{path: path, log: log}
}

// read returns the page contents, zero-padded to flashPageSize if the
// backing file doesn't exist yet or is shorter (an erased STM32 page
// reads as all 0xFF, but the DVM host only ever inspects the bytes it
// itself wrote, so zero-fill is equivalent in practice).
func (fp *filePage) read() []byte {
	data, err := os.ReadFile(fp.path)
	if err != nil {
		return make([]byte, flashPageSize)
	}
	if len(data) >= flashPageSize {
		return data[:flashPageSize]
	}
	out := make([]byte, flashPageSize)
	copy(out, data)
	return out
}

func (fp *filePage) write(data []byte) error {
	if len(data) > flashPageSize {
		return fmt.Errorf("flash write: %d bytes exceeds page size %d", len(data), flashPageSize)
	}
	page := make([]byte, flashPageSize)
	copy(page, data)
	if err := os.WriteFile(fp.path, page, 0o644); err != nil {
		return fmt.Errorf("write flash page %s: %w", fp.path, err)
	}
	if fp.log != nil {
		fp.log.Debug("flash page written", "path", fp.path, "len", len(data))
	}
	return nil
}

// deriveDeviceUID stands in for getUid()'s 12-byte STM32_UUID register
// copy: since there's no such register on a host machine, a stable
// pseudo-UID is hashed from the given seed (the configured hardware
// string, so a deployment's identity stays fixed across restarts).
func deriveDeviceUID(seed string) [12]byte {
	sum := sha256.Sum256([]byte(seed))
	var uid [12]byte
	copy(uid[:], sum[:12])
	return uid
}
