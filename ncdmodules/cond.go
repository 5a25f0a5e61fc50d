package ncdmodules

import (
	"fmt"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
)

// if(cond)
//
// Asserts that cond is the string "true". On any other value the
// statement fails, leaving the process retrying at this position until the
// condition resolves true.
var ifModule = &ncd.Module{
	Type: "if",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 1); err != nil {
			initFailure(i, err)
			return
		}
		cond, err := stringArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		if cond != "true" {
			initFailure(i, fmt.Errorf("condition is %q", cond))
			return
		}
		i.Up()
	},
}
