package pricing

// Tier is the pricing category of a print.
type Tier int

const (
	Economy Tier = iota + 1
	Premium
)

func (t Tier) String() string {
	switch t {
	case Economy:
		return "economy"
	case Premium:
		return "premium"
	default:
		return "unknown"
	}
}

// ParseTier validates a tier name. Empty means economy.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "", "economy":
		return Economy, true
	case "premium":
		return Premium, true
	default:
		return 0, false
	}
}

// SizeID identifies a print size.
type SizeID int

const (
	Size8x10 SizeID = iota + 1
	Size11x14
	Size16x20
	Size18x24
	Size24x36
)

// StickerID identifies a sticker product.
type StickerID int

const (
	Sticker3x3 StickerID = iota + 1
	Sticker4x4
)

// cost is the fulfilment cost and the market price of a comparable product, in dollars.
type cost struct {
	base       float64
	comparable float64
}

type sizeSpec struct {
	key   string
	label string
	ratio float64
	tiers map[Tier]cost
}

type stickerSpec struct {
	key   string
	label string
	cost  cost
}

// sizes lists print sizes in display order.
var sizes = []SizeID{Size8x10, Size11x14, Size16x20, Size18x24, Size24x36}

var sizeTable = map[SizeID]sizeSpec{
	Size8x10: {key: "8x10", label: `8" x 10"`, ratio: 1.25, tiers: map[Tier]cost{
		Economy: {base: 6.50, comparable: 16.00},
		Premium: {base: 10.50, comparable: 24.00},
	}},
	Size11x14: {key: "11x14", label: `11" x 14"`, ratio: 14.0 / 11.0, tiers: map[Tier]cost{
		Economy: {base: 8.50, comparable: 22.00},
		Premium: {base: 14.00, comparable: 32.00},
	}},
	Size16x20: {key: "16x20", label: `16" x 20"`, ratio: 1.25, tiers: map[Tier]cost{
		Economy: {base: 12.00, comparable: 32.00},
		Premium: {base: 22.00, comparable: 48.00},
	}},
	Size18x24: {key: "18x24", label: `18" x 24"`, ratio: 24.0 / 18.0, tiers: map[Tier]cost{
		Economy: {base: 14.50, comparable: 42.00},
		Premium: {base: 28.00, comparable: 65.00},
	}},
	Size24x36: {key: "24x36", label: `24" x 36"`, ratio: 1.5, tiers: map[Tier]cost{
		Economy: {base: 22.00, comparable: 58.00},
		Premium: {base: 42.00, comparable: 95.00},
	}},
}

var stickers = []StickerID{Sticker3x3, Sticker4x4}

var stickerTable = map[StickerID]stickerSpec{
	Sticker3x3: {key: "sticker_3x3", label: `3" x 3" Sticker`, cost: cost{base: 1.80, comparable: 3.50}},
	Sticker4x4: {key: "sticker_4x4", label: `4" x 4" Sticker`, cost: cost{base: 2.20, comparable: 5.00}},
}

func (s SizeID) String() string {
	if spec, ok := sizeTable[s]; ok {
		return spec.key
	}
	return "unknown"
}

// Label is the human readable size name.
func (s SizeID) Label() string { return sizeTable[s].label }

// Ratio is the long side over the short side.
func (s SizeID) Ratio() float64 { return sizeTable[s].ratio }

// ParseSize validates a size key such as "8x10".
func ParseSize(key string) (SizeID, bool) {
	for _, id := range sizes {
		if sizeTable[id].key == key {
			return id, true
		}
	}
	return 0, false
}

// Sizes returns every known print size in display order.
func Sizes() []SizeID {
	return append([]SizeID(nil), sizes...)
}

func (s StickerID) String() string {
	if spec, ok := stickerTable[s]; ok {
		return spec.key
	}
	return "unknown"
}

func (s StickerID) Label() string { return stickerTable[s].label }

// ParseSticker validates a sticker key such as "sticker_3x3".
func ParseSticker(key string) (StickerID, bool) {
	for _, id := range stickers {
		if stickerTable[id].key == key {
			return id, true
		}
	}
	return 0, false
}

// Stickers returns every sticker product.
func Stickers() []StickerID {
	return append([]StickerID(nil), stickers...)
}
