package main

import (
	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/kaspanet/reachability/util/panics"
)

var (
	log   = logger.RegisterSubSystem("RSIM")
	spawn = panics.GoroutineWrapperFunc(log)
)
