package signal

import (
	"os"
	"os/signal"
	"syscall"
)

// ShutdownRequestChannel can be used to request a shutdown from outside
// the signal handler, e.g. when a fatal condition is detected.
var ShutdownRequestChannel = make(chan struct{})

// interruptSignals defines the signals to catch in order to do a proper
// shutdown.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// InterruptListener listens for OS signals such as SIGINT (Ctrl+C) and
// shutdown requests from ShutdownRequestChannel. It returns a channel that
// is closed when either is received. Further signals after the first are
// logged and otherwise ignored.
func InterruptListener() chan struct{} {
	c := make(chan struct{})
	go func() {
		interruptChannel := make(chan os.Signal, 1)
		signal.Notify(interruptChannel, interruptSignals...)

		select {
		case sig := <-interruptChannel:
			log.Infof("Received signal (%s). Shutting down...", sig)
		case <-ShutdownRequestChannel:
			log.Info("Shutdown requested. Shutting down...")
		}
		close(c)

		for {
			select {
			case sig := <-interruptChannel:
				log.Infof("Received signal (%s). Already shutting down...", sig)
			case <-ShutdownRequestChannel:
				log.Info("Shutdown requested. Already shutting down...")
			}
		}
	}()

	return c
}
