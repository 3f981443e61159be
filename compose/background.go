package compose

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind 背景类型，取值封闭
type Kind int

const (
	Transparent Kind = iota
	White
	Black
	Color
)

func (k Kind) String() string {
	switch k {
	case Transparent:
		return "Transparent"
	case White:
		return "White"
	case Black:
		return "Black"
	case Color:
		return "Color"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Background 去除后的背景填充策略；R/G/B 仅在 Kind == Color 时有意义
type Background struct {
	Kind    Kind
	R, G, B uint8
}

func NewColor(r, g, b uint8) Background {
	return Background{Kind: Color, R: r, G: g, B: b}
}

// ParseBackground 解析命令行/表单形式：transparent、white、black、#rrggbb
func ParseBackground(s string) (Background, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "transparent", "none":
		return Background{Kind: Transparent}, nil
	case "white":
		return Background{Kind: White}, nil
	case "black":
		return Background{Kind: Black}, nil
	}

	hex := strings.TrimPrefix(v, "#")
	if len(hex) != 6 {
		return Background{}, fmt.Errorf("background %q: want transparent, white, black or #rrggbb", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Background{}, fmt.Errorf("background %q: %w", s, err)
	}
	return NewColor(uint8(n>>16), uint8(n>>8), uint8(n)), nil
}

func (b Background) String() string {
	switch b.Kind {
	case Transparent:
		return "transparent"
	case White:
		return "white"
	case Black:
		return "black"
	case Color:
		return fmt.Sprintf("#%02x%02x%02x", b.R, b.G, b.B)
	default:
		return b.Kind.String()
	}
}

// backgroundJSON 与前端约定的格式 {"type":"Color","r":1,"g":2,"b":3}
type backgroundJSON struct {
	Type string `json:"type"`
	R    *uint8 `json:"r,omitempty"`
	G    *uint8 `json:"g,omitempty"`
	B    *uint8 `json:"b,omitempty"`
}

func (b Background) MarshalJSON() ([]byte, error) {
	out := backgroundJSON{Type: b.Kind.String()}
	if b.Kind == Color {
		out.R, out.G, out.B = &b.R, &b.G, &b.B
	}
	return json.Marshal(out)
}

func (b *Background) UnmarshalJSON(data []byte) error {
	// 也接受字符串形式，如 "white" 或 "#112233"
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseBackground(s)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}

	var in backgroundJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "Transparent":
		*b = Background{Kind: Transparent}
	case "White":
		*b = Background{Kind: White}
	case "Black":
		*b = Background{Kind: Black}
	case "Color":
		if in.R == nil || in.G == nil || in.B == nil {
			return fmt.Errorf("background Color requires r, g and b")
		}
		*b = NewColor(*in.R, *in.G, *in.B)
	default:
		return fmt.Errorf("unknown background type %q", in.Type)
	}
	return nil
}
