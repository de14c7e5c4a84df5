package gpio

import "strconv"

// Alternate function markers. Which peripheral signal each selects depends on
// the pin; see the device datasheet.
type (
	AF0  struct{}
	AF1  struct{}
	AF2  struct{}
	AF3  struct{}
	AF4  struct{}
	AF5  struct{}
	AF6  struct{}
	AF7  struct{}
	AF8  struct{}
	AF9  struct{}
	AF10 struct{}
	AF11 struct{}
	AF12 struct{}
	AF13 struct{}
	AF14 struct{}
	AF15 struct{}
)

func (AF0) af() uint32  { return 0 }
func (AF1) af() uint32  { return 1 }
func (AF2) af() uint32  { return 2 }
func (AF3) af() uint32  { return 3 }
func (AF4) af() uint32  { return 4 }
func (AF5) af() uint32  { return 5 }
func (AF6) af() uint32  { return 6 }
func (AF7) af() uint32  { return 7 }
func (AF8) af() uint32  { return 8 }
func (AF9) af() uint32  { return 9 }
func (AF10) af() uint32 { return 10 }
func (AF11) af() uint32 { return 11 }
func (AF12) af() uint32 { return 12 }
func (AF13) af() uint32 { return 13 }
func (AF14) af() uint32 { return 14 }
func (AF15) af() uint32 { return 15 }

func (a AF0) String() string  { return afName(a) }
func (a AF1) String() string  { return afName(a) }
func (a AF2) String() string  { return afName(a) }
func (a AF3) String() string  { return afName(a) }
func (a AF4) String() string  { return afName(a) }
func (a AF5) String() string  { return afName(a) }
func (a AF6) String() string  { return afName(a) }
func (a AF7) String() string  { return afName(a) }
func (a AF8) String() string  { return afName(a) }
func (a AF9) String() string  { return afName(a) }
func (a AF10) String() string { return afName(a) }
func (a AF11) String() string { return afName(a) }
func (a AF12) String() string { return afName(a) }
func (a AF13) String() string { return afName(a) }
func (a AF14) String() string { return afName(a) }
func (a AF15) String() string { return afName(a) }

func afName(a AltMode) string {
	return "AF" + strconv.Itoa(int(a.af()))
}
