package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"github.com/wnxd/microld/emulator"
	internal "github.com/wnxd/microld/internal/emulator"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/rtld"
	_ "github.com/wnxd/microld/rtld/m68k"
	_ "github.com/wnxd/microld/rtld/ppc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultBase = 0x40000000

// libraryAlign separates shared objects placed one after another.
const libraryAlign = 0x10000

type config struct {
	lazy    bool
	verbose bool
	logFile string
	interp  string
	base    uint64
	libPath []string
	files   []string
}

func parseFlags(args []string) (*config, error) {
	var cfg config
	fs := flag.NewFlagSet("microld", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.lazy, "lazy", false, "prepare PLT slots for lazy binding instead of binding now")
	fs.BoolVar(&cfg.verbose, "v", false, "log every relocation")
	fs.StringVar(&cfg.logFile, "log-file", "", "also write logs to a rotating file")
	fs.StringVar(&cfg.interp, "interp", "", "file name of the dynamic linker object")
	fs.Uint64Var(&cfg.base, "base", defaultBase, "load address of the first shared object")
	fs.Func("L", "directory searched for DT_NEEDED libraries (repeatable)", func(dir string) error {
		cfg.libPath = append(cfg.libPath, dir)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.files = fs.Args()
	if len(cfg.files) == 0 {
		return nil, errors.New("no executable given")
	}
	if cfg.base%libraryAlign != 0 {
		return nil, errors.Errorf("base %#x is not aligned to %#x", cfg.base, libraryAlign)
	}
	return &cfg, nil
}

func newLogger(cfg *config) *zap.Logger {
	level := zap.InfoLevel
	if cfg.verbose {
		level = zap.DebugLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stderr), level),
	}
	if cfg.logFile != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.logFile,
			MaxSize:    10,
			MaxBackups: 3,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

// load maps every file into emu, followed by the DT_NEEDED libraries they
// pull in, breadth first. The first file is the executable; the others are
// placed one after another starting at cfg.base.
func load(emu emulator.Emulator, cfg *config) ([]*loader.Image, error) {
	queue := slices.Clone(cfg.files)
	seen := make(map[string]bool, len(queue))
	for _, name := range queue {
		seen[filepath.Base(name)] = true
	}
	images := make([]*loader.Image, 0, len(queue))
	next := cfg.base
	for i := 0; i < len(queue); i++ {
		img, err := loadFile(emu, queue[i], next, cfg.interp)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
		needed, err := img.Needed()
		if err != nil {
			return nil, errors.WithMessage(err, img.Name())
		}
		for _, lib := range needed {
			if seen[lib] {
				continue
			}
			seen[lib] = true
			path, err := findLibrary(cfg.libPath, lib)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s needed by %s", lib, img.Name())
			}
			queue = append(queue, path)
		}
		end, err := mappedEnd(emu)
		if err != nil {
			return nil, err
		}
		next = max(next, emulator.Align(end, libraryAlign))
	}
	scope := make(loader.Scope, len(images))
	for i, img := range images {
		scope[i] = img
	}
	for _, img := range images {
		img.SetScope(scope)
	}
	return images, nil
}

func loadFile(emu emulator.Emulator, name string, bias uint64, interp string) (*loader.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var opts []loader.ImageOption
	if interp != "" && filepath.Base(name) == filepath.Base(interp) {
		opts = append(opts, loader.AsInterpreter())
	}
	return loader.LoadELF(emu, filepath.Base(name), f, bias, opts...)
}

func findLibrary(dirs []string, name string) (string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", errors.Wrapf(os.ErrNotExist, "search %v", dirs)
}

func mappedEnd(emu emulator.Emulator) (uint64, error) {
	regions, err := emu.MemRegions()
	if err != nil {
		return 0, err
	}
	var end uint64
	for _, r := range regions {
		end = max(end, r.End())
	}
	return end, nil
}

func detect(name string) (emulator.Arch, error) {
	f, err := os.Open(name)
	if err != nil {
		return emulator.ARCH_UNKNOWN, err
	}
	defer f.Close()
	arch, err := loader.DetectArch(f)
	return arch, errors.WithMessage(err, name)
}

func run(cfg *config, logger *zap.Logger, out io.Writer, opts ...rtld.Option) error {
	arch, err := detect(cfg.files[0])
	if err != nil {
		return err
	}
	emu, err := internal.New(arch)
	if err != nil {
		return err
	}
	defer emu.Close()
	images, err := load(emu, cfg)
	if err != nil {
		return err
	}
	opts = append([]rtld.Option{rtld.WithLogger(logger)}, opts...)
	ld, err := rtld.New(emu, opts...)
	if err != nil {
		return err
	}
	defer ld.Close()
	objs := make([]loader.Object, len(images))
	for i, img := range images {
		objs[i] = img
	}
	if err = rtld.Startup(ld, objs, cfg.lazy); err != nil {
		return err
	}
	for _, img := range images {
		fmt.Fprintf(out, "%-24s %08x\n", img.Name(), img.LoadBias())
	}
	return nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalln(err)
	}
	logger := newLogger(cfg)
	defer logger.Sync()
	if err = run(cfg, logger, os.Stdout); err != nil {
		logger.Error("startup failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
