package ldb

import "github.com/kaspanet/reachability/infrastructure/logger"

var log = logger.RegisterSubSystem("LVDB")
