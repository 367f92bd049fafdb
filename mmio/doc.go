// Package mmio binds h7flash.Bus to the real FLASH peripheral.
//
// On hosted builds the register block and the flash array are mapped from
// physical memory with periph.io's pmem, which needs access to /dev/mem. The
// register mapping is done by a periph driver that host.Init brings up. On
// TinyGo bare-metal builds the addresses are accessed directly with volatile
// loads and stores.
package mmio
