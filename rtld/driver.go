package rtld

import (
	"github.com/pkg/errors"
	"github.com/wnxd/microld/loader"
	"go.uber.org/multierr"
)

// Startup relocates objs the way the dynamic linker does before handing
// control to the program. Objects are relocated last to first so that
// dependencies are ready before their users. Any fatal error or unresolved
// symbol terminates through l.Fatal; the error is also returned for exit
// hooks that do not stop the caller.
func Startup(l Linker, objs []loader.Object, lazy bool) error {
	for i := len(objs) - 1; i >= 0; i-- {
		obj := objs[i]
		goofs, err := l.ApplyDataRelocations(obj)
		if err = failed(obj.Name(), goofs, err); err != nil {
			l.Fatal(err)
			return err
		}
		goofs, err = l.ApplyPLTRelocations(obj, lazy)
		if err = failed(obj.Name(), goofs, err); err != nil {
			l.Fatal(err)
			return err
		}
	}
	goofs, err := l.ApplyCopyRelocations(objs)
	if err = failed("copy relocations", goofs, err); err != nil {
		l.Fatal(err)
		return err
	}
	return nil
}

func failed(what string, goofs uint, err error) error {
	switch {
	case IsFatal(err):
		return err
	case goofs != 0:
		return multierr.Append(errors.Wrapf(ErrUnresolved, "%s: %d", what, goofs), err)
	case err != nil:
		return errors.WithMessage(err, what)
	}
	return nil
}

// Bind is the lazy binding entry of a PLT trampoline. A slot that cannot be
// bound terminates the process.
func Bind(l Linker, obj loader.Object, off uint64) uint64 {
	addr, err := l.ResolveLazyPLTEntry(obj, off)
	if err != nil {
		l.Fatal(errors.WithMessage(err, "lazy binding failed"))
		return 0
	}
	return addr
}
