package lbeast

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 结构布局注册表：把带外约定的定长记录 schema 放进配置文件，
// 发送前校验 Struct 载荷长度，避免把错位的记录发给固件

// LayoutField 布局中的一个定宽字段
type LayoutField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // bool/u8/u16/u32/i32/f32
}

// width 字段的字节宽度，未知类型返回 0
func (f LayoutField) width() int {
	switch f.Type {
	case "bool", "u8":
		return 1
	case "u16":
		return 2
	case "u32", "i32", "f32":
		return 4
	default:
		return 0
	}
}

// Layout 一个命名的定长结构布局
type Layout struct {
	Name   string        `yaml:"name"`
	Fields []LayoutField `yaml:"fields"`
}

// Size 布局的总字节数
func (l Layout) Size() int {
	n := 0
	for _, f := range l.Fields {
		n += f.width()
	}
	return n
}

// LayoutRegistry 已注册布局集合
type LayoutRegistry struct {
	m map[string]Layout
}

// LoadLayouts 从 YAML 文件加载布局注册表
func LoadLayouts(path string) (*LayoutRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts: %w", err)
	}
	var doc struct {
		Layouts []Layout `yaml:"layouts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}

	reg := &LayoutRegistry{m: make(map[string]Layout, len(doc.Layouts))}
	for _, l := range doc.Layouts {
		if l.Name == "" {
			return nil, fmt.Errorf("layout missing name")
		}
		for _, f := range l.Fields {
			if f.width() == 0 {
				return nil, fmt.Errorf("layout %q field %q: unsupported type %q", l.Name, f.Name, f.Type)
			}
		}
		if l.Size() > MaxPayloadSize {
			return nil, fmt.Errorf("layout %q exceeds payload budget: %d bytes", l.Name, l.Size())
		}
		reg.m[l.Name] = l
	}
	return reg, nil
}

// Get 按名称取布局
func (r *LayoutRegistry) Get(name string) (Layout, bool) {
	l, ok := r.m[name]
	return l, ok
}

// Validate 校验 Struct 载荷长度与布局约定一致
func (r *LayoutRegistry) Validate(name string, payload []byte) error {
	l, ok := r.m[name]
	if !ok {
		return fmt.Errorf("unknown layout %q", name)
	}
	if len(payload) != l.Size() {
		return fmt.Errorf("layout %q expects %d bytes, got %d: %w", name, l.Size(), len(payload), ErrMalformedFrame)
	}
	return nil
}
