package ncdmodules

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/reactor"
	"github.com/joeycumines/go-ncd/value"
)

// sleep(ms)
// sleep(ms_up, ms_down)
//
// Reports up ms milliseconds after initialization. With a second argument,
// destruction is likewise delayed by ms_down milliseconds.
var sleepModule = &ncd.Module{
	Type: "sleep",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := rangeArgs(args, 1, 2); err != nil {
			initFailure(i, err)
			return
		}
		upTime, err := msArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		st := &sleepState{}
		if args.ListLen() == 2 {
			st.downTime, err = msArg(args, 1)
			if err != nil {
				initFailure(i, err)
				return
			}
			st.hasDownTime = true
		}
		i.Mem = st
		st.timer = i.Reactor().After(upTime, func() {
			st.timer = nil
			i.Up()
		})
	},
	Die: func(i *ncd.Instance) {
		st := i.Mem.(*sleepState)
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		if !st.hasDownTime {
			i.Dead()
			return
		}
		st.timer = i.Reactor().After(st.downTime, func() {
			st.timer = nil
			i.Dead()
		})
	},
}

type sleepState struct {
	timer       *reactor.Timer
	downTime    time.Duration
	hasDownTime bool
}

// msArg extracts argument i as a non-negative millisecond count.
func msArg(args value.Value, i int) (time.Duration, error) {
	s, err := stringArg(args, i)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &ncd.ArgumentError{Cause: err, Message: fmt.Sprintf("argument %d must be a millisecond count", i)}
	}
	return time.Duration(ms) * time.Millisecond, nil
}
