package signal

import (
	"github.com/kaspanet/reachability/infrastructure/logger"
)

var log = logger.RegisterSubSystem("SIGN")
