package device

import "github.com/Jon-Bright/rccctl/mmio"

// RCC register offsets.
const (
	RCC_CR       = 0x00
	RCC_CFGR     = 0x04
	RCC_CIR      = 0x08
	RCC_APB2RSTR = 0x0C
	RCC_APB1RSTR = 0x10
	RCC_AHBENR   = 0x14
	RCC_APB2ENR  = 0x18
	RCC_APB1ENR  = 0x1C
	RCC_BDCR     = 0x20
	RCC_CSR      = 0x24
	RCC_AHBRSTR  = 0x28
	RCC_CFGR2    = 0x2C
	RCC_CFGR3    = 0x30
)

// RCC_CR bits.
const (
	RCC_CR_HSION  = 1 << 0
	RCC_CR_HSIRDY = 1 << 1
	RCC_CR_HSEON  = 1 << 16
	RCC_CR_HSERDY = 1 << 17
	RCC_CR_HSEBYP = 1 << 18
	RCC_CR_CSSON  = 1 << 19
	RCC_CR_PLLON  = 1 << 24
	RCC_CR_PLLRDY = 1 << 25
)

// RCC_CFGR fields, as (mask, position) pairs.
const (
	RCC_CFGR_SW_MASK     = 0x3
	RCC_CFGR_SW_POS      = 0
	RCC_CFGR_SWS_MASK    = 0x3
	RCC_CFGR_SWS_POS     = 2
	RCC_CFGR_HPRE_MASK   = 0xF
	RCC_CFGR_HPRE_POS    = 4
	RCC_CFGR_PPRE1_MASK  = 0x7
	RCC_CFGR_PPRE1_POS   = 8
	RCC_CFGR_PPRE2_MASK  = 0x7
	RCC_CFGR_PPRE2_POS   = 11
	RCC_CFGR_PLLSRC      = 1 << 16
	RCC_CFGR_PLLXTPRE    = 1 << 17
	RCC_CFGR_PLLMUL_MASK = 0xF
	RCC_CFGR_PLLMUL_POS  = 18

	RCC_CFGR_SW_HSI = 0b00
	RCC_CFGR_SW_HSE = 0b01
	RCC_CFGR_SW_PLL = 0b10
)

const (
	RCC_CFGR2_PREDIV_MASK = 0xF
	RCC_CFGR2_PREDIV_POS  = 0
)

// RCC_AHBENR/RCC_AHBRSTR GPIO port bits. Port n is IOPAEN << n.
const (
	RCC_AHBENR_IOPAEN = 1 << 17
	RCC_AHBENR_IOPBEN = 1 << 18
	RCC_AHBENR_IOPCEN = 1 << 19
	RCC_AHBENR_IOPDEN = 1 << 20
	RCC_AHBENR_IOPEEN = 1 << 21
	RCC_AHBENR_IOPFEN = 1 << 22
)

// FLASH register offsets and ACR bits.
const (
	FLASH_ACR     = 0x00
	FLASH_KEYR    = 0x04
	FLASH_OPTKEYR = 0x08
	FLASH_SR      = 0x0C
	FLASH_CR      = 0x10
	FLASH_AR      = 0x14
	FLASH_OBR     = 0x1C
	FLASH_WRPR    = 0x20

	FLASH_ACR_LATENCY_MASK = 0x7
	FLASH_ACR_LATENCY_POS  = 0
	FLASH_ACR_HLFCYA       = 1 << 3
	FLASH_ACR_PRFTBE       = 1 << 4
	FLASH_ACR_PRFTBS       = 1 << 5

	FLASH_ACR_RESET = FLASH_ACR_PRFTBE | FLASH_ACR_PRFTBS
)

// GPIO register offsets.
const (
	GPIO_MODER   = 0x00
	GPIO_OTYPER  = 0x04
	GPIO_OSPEEDR = 0x08
	GPIO_PUPDR   = 0x0C
	GPIO_IDR     = 0x10
	GPIO_ODR     = 0x14
	GPIO_BSRR    = 0x18
	GPIO_LCKR    = 0x1C
	GPIO_AFRL    = 0x20
	GPIO_AFRH    = 0x24
	GPIO_BRR     = 0x28
)

// Reset values of the ports that come out of reset with their JTAG pins
// configured. Every other GPIO register resets to zero.
const (
	GPIOA_MODER_RESET   = 0xA8000000
	GPIOA_PUPDR_RESET   = 0x64000000
	GPIOA_OSPEEDR_RESET = 0x0C000000
	GPIOB_MODER_RESET   = 0x00000280
	GPIOB_PUPDR_RESET   = 0x00000100
	GPIOB_OSPEEDR_RESET = 0x000000C0
)

type RCC struct {
	block
	CR, CFGR, CIR         mmio.Reg32
	APB2RSTR, APB1RSTR    mmio.Reg32
	AHBENR                mmio.Reg32
	APB2ENR, APB1ENR      mmio.Reg32
	BDCR, CSR             mmio.Reg32
	AHBRSTR, CFGR2, CFGR3 mmio.Reg32
}

func newRCC(s *mmio.Space) *RCC {
	r := func(off uint32) mmio.Reg32 { return s.Reg(RCC_BASE + off) }
	return &RCC{
		block:    block{name: "RCC"},
		CR:       r(RCC_CR),
		CFGR:     r(RCC_CFGR),
		CIR:      r(RCC_CIR),
		APB2RSTR: r(RCC_APB2RSTR),
		APB1RSTR: r(RCC_APB1RSTR),
		AHBENR:   r(RCC_AHBENR),
		APB2ENR:  r(RCC_APB2ENR),
		APB1ENR:  r(RCC_APB1ENR),
		BDCR:     r(RCC_BDCR),
		CSR:      r(RCC_CSR),
		AHBRSTR:  r(RCC_AHBRSTR),
		CFGR2:    r(RCC_CFGR2),
		CFGR3:    r(RCC_CFGR3),
	}
}

type FLASH struct {
	block
	ACR, KEYR, OPTKEYR, SR, CR, AR mmio.Reg32
}

func newFLASH(s *mmio.Space) *FLASH {
	r := func(off uint32) mmio.Reg32 { return s.Reg(FLASH_BASE + off) }
	return &FLASH{
		block:   block{name: "FLASH"},
		ACR:     r(FLASH_ACR),
		KEYR:    r(FLASH_KEYR),
		OPTKEYR: r(FLASH_OPTKEYR),
		SR:      r(FLASH_SR),
		CR:      r(FLASH_CR),
		AR:      r(FLASH_AR),
	}
}

type GPIO struct {
	block
	Port                          Port
	MODER, OTYPER, OSPEEDR, PUPDR mmio.Reg32
	IDR, ODR, BSRR, LCKR          mmio.Reg32
	AFRL, AFRH, BRR               mmio.Reg32
}

func newGPIO(s *mmio.Space, p Port) *GPIO {
	base := p.Base()
	r := func(off uint32) mmio.Reg32 { return s.Reg(base + off) }
	return &GPIO{
		block:   block{name: p.String()},
		Port:    p,
		MODER:   r(GPIO_MODER),
		OTYPER:  r(GPIO_OTYPER),
		OSPEEDR: r(GPIO_OSPEEDR),
		PUPDR:   r(GPIO_PUPDR),
		IDR:     r(GPIO_IDR),
		ODR:     r(GPIO_ODR),
		BSRR:    r(GPIO_BSRR),
		LCKR:    r(GPIO_LCKR),
		AFRL:    r(GPIO_AFRL),
		AFRH:    r(GPIO_AFRH),
		BRR:     r(GPIO_BRR),
	}
}
