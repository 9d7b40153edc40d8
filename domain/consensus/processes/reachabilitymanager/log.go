package reachabilitymanager

import (
	"github.com/kaspanet/reachability/infrastructure/logger"
)

var log = logger.RegisterSubSystem("RTMG")
