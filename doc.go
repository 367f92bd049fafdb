// Package h7flash erases, programs and reads the embedded flash of dual-bank
// STM32H7 microcontrollers.
//
// The driver never touches memory itself. All register and flash-array access
// goes through a Bus, so the same erase/program state machine runs on memory
// mapped I/O (see package mmio) and on the register model in package sim.
//
// Every erase and program call unlocks the target bank with the key sequence,
// busy-waits for the controller, decodes the status register and locks the bank
// again before returning, on success and on failure. Waits have no timeout:
// an unresponsive bank blocks the caller.
//
// # References:
//
// STMicroelectronics
//   - [RM0433]: STM32H742, STM32H743/753 and STM32H750 Value line reference manual, Rev 8 (https://www.st.com/resource/en/reference_manual/rm0433-stm32h742-stm32h743753-and-stm32h750-value-line-advanced-armbased-32bit-mcus-stmicroelectronics.pdf)
//   - [DS12110]: STM32H743xI datasheet (https://www.st.com/resource/en/datasheet/stm32h743vi.pdf)
//   - [AN5342]: How to use error correction code (ECC) management for internal memories protection on STM32 MCUs (https://www.st.com/resource/en/application_note/an5342-how-to-use-error-correction-code-ecc-management-for-internal-memories-protection-on-stm32-mcus-stmicroelectronics.pdf)
package h7flash
