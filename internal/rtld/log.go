package rtld

import (
	"fmt"

	"github.com/wnxd/microld/rtld"
	"go.uber.org/zap"
)

type hex uint64

func (h hex) String() string {
	return fmt.Sprintf("%#08x", uint64(h))
}

func siteFields(site rtld.Site) []zap.Field {
	fields := []zap.Field{
		zap.String("object", site.Object),
		zap.Stringer("addr", hex(site.Addr)),
		zap.String("type", site.Type),
	}
	if site.Symbol != "" {
		fields = append(fields, zap.String("symbol", site.Symbol))
	}
	return fields
}

func (ld *Ld) trace(f fixup, value, width uint64) {
	if ce := ld.log.Check(zap.DebugLevel, "relocate"); ce != nil {
		ce.Write(append(siteFields(f.site),
			zap.Stringer("kind", f.kind),
			zap.Stringer("value", hex(value)),
			zap.Uint64("width", width))...)
	}
}
