// Package log provides the leveled logging used across the memory engine.
//
// Components take a Logger and default to the swappable package-level logger,
// so embedding applications can route engine output anywhere. Two
// implementations ship with the package: StdLogger on the standard library,
// and GologLogger bridging to kataras/golog:
//
//	import (
//		"github.com/kataras/golog"
//		"github.com/smallnest/memograph/log"
//	)
//
//	log.SetDefault(log.NewGologLogger(golog.Default))
package log
