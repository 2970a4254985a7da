package vte

// ansiColor maps the 16 basic SGR color codes (30-37, 90-97 for fg and
// their bg counterparts) to 0xRRGGBBAA.
var ansiColor = [8]uint32{
	0x000000FF, 0xCC0000FF, 0x00CC00FF, 0xCCCC00FF,
	0x0000CCFF, 0xCC00CCFF, 0x00CCCCFF, 0xCCCCCCFF,
}

var ansiBrightColor = [8]uint32{
	0x808080FF, 0xFF0000FF, 0x00FF00FF, 0xFFFF00FF,
	0x0000FFFF, 0xFF00FFFF, 0x00FFFFFF, 0xFFFFFFFF,
}

// color256 implements the xterm 256-color palette used by
// 38;5;n / 48;5;n, per spec.md §4.3.
func color256(n int) uint32 {
	switch {
	case n < 8:
		return ansiColor[n]
	case n < 16:
		return ansiBrightColor[n-8]
	case n < 232:
		n -= 16
		r := (n / 36) % 6
		g := (n / 6) % 6
		b := n % 6
		scale := func(v int) uint32 {
			if v == 0 {
				return 0
			}
			return uint32(55 + v*40)
		}
		return scale(r)<<24 | scale(g)<<16 | scale(b)<<8 | 0xFF
	default:
		gray := uint32(8 + (n-232)*10)
		return gray<<24 | gray<<16 | gray<<8 | 0xFF
	}
}

// applySGR applies a CSI "m" parameter list to the active screen's
// current attributes, per spec.md §4.3: SGR 0 resets; 256-color
// (38;5;n/48;5;n) and truecolor (38;2;r;g;b/48;2;r;g;b) are supported.
func (t *Terminal) applySGR(params []int) {
	s := t.active()
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s.attrs = DefaultAttrs
		case p == 1:
			s.attrs.Flags |= 1 // bold
		case p == 2:
			s.attrs.Flags |= 1 << 4 // dim
		case p == 3:
			s.attrs.Flags |= 1 << 1 // italic
		case p == 4:
			s.attrs.Flags |= 1 << 2 // underline
		case p == 7:
			s.attrs.Flags |= 1 << 3 // inverse
		case p == 9:
			s.attrs.Flags |= 1 << 5 // strike
		case p == 22:
			s.attrs.Flags &^= 1 | (1 << 4)
		case p == 23:
			s.attrs.Flags &^= 1 << 1
		case p == 24:
			s.attrs.Flags &^= 1 << 2
		case p == 27:
			s.attrs.Flags &^= 1 << 3
		case p == 29:
			s.attrs.Flags &^= 1 << 5
		case p >= 30 && p <= 37:
			s.attrs.Fg = ansiColor[p-30]
		case p == 38:
			n, rest := parseExtendedColor(params[i+1:])
			s.attrs.Fg = n
			i += rest
		case p == 39:
			s.attrs.Fg = DefaultAttrs.Fg
		case p >= 40 && p <= 47:
			s.attrs.Bg = ansiColor[p-40]
		case p == 48:
			n, rest := parseExtendedColor(params[i+1:])
			s.attrs.Bg = n
			i += rest
		case p == 49:
			s.attrs.Bg = DefaultAttrs.Bg
		case p >= 90 && p <= 97:
			s.attrs.Fg = ansiBrightColor[p-90]
		case p >= 100 && p <= 107:
			s.attrs.Bg = ansiBrightColor[p-100]
		}
	}
}

// parseExtendedColor consumes the mode selector (5 => 256-color, 2 =>
// truecolor) and its arguments from params, returning the resolved
// 0xRRGGBBAA color and how many extra elements were consumed.
func parseExtendedColor(params []int) (color uint32, consumed int) {
	if len(params) == 0 {
		return DefaultAttrs.Fg, 0
	}
	switch params[0] {
	case 5:
		if len(params) < 2 {
			return DefaultAttrs.Fg, 1
		}
		return color256(params[1]), 2
	case 2:
		if len(params) < 4 {
			return DefaultAttrs.Fg, len(params) - 1
		}
		r, g, b := uint32(params[1]), uint32(params[2]), uint32(params[3])
		return r<<24 | g<<16 | b<<8 | 0xFF, 4
	default:
		return DefaultAttrs.Fg, 1
	}
}
