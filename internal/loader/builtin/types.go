// Package builtin 注册应用自带的资源类型，导入即生效：
//
//	import _ "github.com/any-hub/resource-hub/internal/loader/builtin"
package builtin

import "github.com/any-hub/resource-hub/internal/loader"

// 类型键即资源根目录下的子目录名。
const (
	Brushes        = "brushes"
	PaintopPresets = "paintoppresets"
	Palettes       = "palettes"
	Gradients      = "gradients"
	Patterns       = "patterns"
	Workspaces     = "workspaces"
	LayerStyles    = "layerstyles"
	Symbols        = "symbols"
	GamutMasks     = "gamutmasks"
	WindowLayouts  = "windowlayouts"
	Sessions       = "sessions"
)

func init() {
	for _, t := range Types() {
		loader.MustRegister(t)
	}
}

// Types 返回内置类型定义的副本，便于测试构造独立注册表。
func Types() []loader.ResourceType {
	return []loader.ResourceType{
		{
			Key:         Brushes,
			Description: "Brush tips (GIMP brushes, image hoses, raster and vector tips)",
			Extensions:  []string{".gbr", ".gih", ".png", ".svg"},
			MimeTypes:   []string{"image/x-gimp-brush", "image/x-gimp-brush-animated", "image/png", "image/svg+xml"},
		},
		{
			Key:         PaintopPresets,
			Description: "Paint operation presets",
			Extensions:  []string{".kpp"},
			MimeTypes:   []string{"application/x-krita-paintoppreset"},
		},
		{
			Key:         Palettes,
			Description: "Color palettes",
			Extensions:  []string{".gpl", ".kpl", ".pal", ".act", ".aco", ".css", ".colors", ".xml", ".sbz"},
			MimeTypes:   []string{"application/x-gimp-color-palette", "application/x-krita-palette"},
		},
		{
			Key:         Gradients,
			Description: "Gradients",
			Extensions:  []string{".ggr", ".svg", ".kgr"},
			MimeTypes:   []string{"application/x-gimp-gradient", "image/svg+xml"},
		},
		{
			Key:         Patterns,
			Description: "Fill patterns",
			Extensions:  []string{".pat", ".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff", ".xpm"},
			MimeTypes:   []string{"image/x-gimp-pat", "image/png", "image/jpeg"},
		},
		{
			Key:         Workspaces,
			Description: "Window workspaces",
			Extensions:  []string{".kws"},
			MimeTypes:   []string{"application/x-krita-workspace"},
		},
		{
			Key:         LayerStyles,
			Description: "Layer styles",
			Extensions:  []string{".asl"},
			MimeTypes:   []string{"application/x-photoshop-style-library"},
		},
		{
			Key:         Symbols,
			Description: "Vector symbol libraries",
			Extensions:  []string{".svg"},
			MimeTypes:   []string{"image/svg+xml"},
		},
		{
			Key:         GamutMasks,
			Description: "Gamut masks",
			Extensions:  []string{".kgm"},
			MimeTypes:   []string{"application/x-krita-gamutmasks"},
		},
		{
			Key:         WindowLayouts,
			Description: "Window layouts",
			Extensions:  []string{".kwl"},
			MimeTypes:   []string{"application/x-krita-windowlayout"},
		},
		{
			Key:         Sessions,
			Description: "Sessions",
			Extensions:  []string{".ksn"},
			MimeTypes:   []string{"application/x-krita-session"},
		},
	}
}
